package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/miruna26/aicore-data-collection/config"
	"github.com/miruna26/aicore-data-collection/internal/storage"
	"github.com/miruna26/aicore-data-collection/internal/vehicle"
	"github.com/miruna26/aicore-data-collection/logger"
)

// runExport loads a collection file or a materialized directory and writes
// its table as CSV and, optionally, to PostgreSQL
func runExport(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	in := fs.String("in", cfg.OutputDir, "collection JSON file or materialized directory")
	csvPath := fs.String("csv", "", "CSV output path, stdout when empty")
	toPostgres := fs.Bool("postgres", false, "upsert rows into POSTGRES_DSN")
	if err := fs.Parse(args); err != nil {
		return err
	}

	vehicles, err := loadVehicles(*in)
	if err != nil {
		return err
	}
	table := storage.ToTable(vehicles)

	if err := writeCSV(table, *csvPath); err != nil {
		return err
	}

	if *toPostgres {
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("-postgres needs POSTGRES_DSN")
		}
		pw, err := storage.NewPostgresWriter(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pw.Close()
		if err := pw.Write(ctx, table); err != nil {
			return err
		}
	}

	logger.LogInfo("export", "Exported %d rows from %s (postgres: %t)", table.Len(), *in, *toPostgres)
	return nil
}

// loadVehicles reads either a collection file or a tree written by Save
func loadVehicles(path string) ([]*vehicle.Vehicle, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return storage.LoadDir(path)
	}
	return storage.LoadAll(path)
}

func writeCSV(table *storage.Table, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return table.WriteCSV(w)
}
