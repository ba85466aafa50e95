package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"
)

// imageSeparator joins image URLs inside a single CSV cell
const imageSeparator = "|"

// Table is the flattened, one-row-per-vehicle view of a collection
type Table struct {
	Columns []string
	Rows    []vehicle.Flat
}

// ToTable flattens vehicles in input order
func ToTable(vehicles []*vehicle.Vehicle) *Table {
	t := &Table{
		Columns: vehicle.Columns(),
		Rows:    make([]vehicle.Flat, 0, len(vehicles)),
	}
	for _, v := range vehicles {
		t.Rows = append(t.Rows, v.Flatten())
	}
	return t
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// Maps returns each row keyed by column. Null fields are present with a nil value.
func (t *Table) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		m := map[string]any{
			"id":   row.ID,
			"uuid": row.UUID,
		}
		for _, f := range vehicle.Fields {
			m[string(f)] = fieldValue(row.Data, f)
		}
		out = append(out, m)
	}
	return out
}

// WriteCSV writes a header row followed by one row per vehicle. Null fields
// become empty cells and images are joined with "|".
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, row := range t.Rows {
		record := make([]string, 0, len(t.Columns))
		record = append(record, row.ID, row.UUID)
		for _, f := range vehicle.Fields {
			record = append(record, cell(fieldValue(row.Data, f)))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv: write row %s: %w", row.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func fieldValue(d vehicle.Data, f vehicle.Field) any {
	var p *string
	switch f {
	case vehicle.FieldHref:
		p = d.Href
	case vehicle.FieldTitle:
		p = d.Title
	case vehicle.FieldSubtitle:
		p = d.Subtitle
	case vehicle.FieldPrice:
		p = d.Price
	case vehicle.FieldLocation:
		p = d.Location
	case vehicle.FieldMileage:
		p = d.Mileage
	case vehicle.FieldDescription:
		p = d.Description
	case vehicle.FieldImages:
		return d.Images
	}
	if p == nil {
		return nil
	}
	return *p
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, imageSeparator)
	default:
		return fmt.Sprint(val)
	}
}
