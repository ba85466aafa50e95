package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/miruna26/aicore-data-collection/internal/vehicle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpsert(t *testing.T) {
	a := newTestVehicle(t, "AT1", "http://x/1.jpg")
	b := vehicle.New("AT2", vehicle.WithUUID("uuid-AT2"), vehicle.WithObserver(&vehicle.Recorder{}))
	rows := ToTable([]*vehicle.Vehicle{a, b}).Rows

	query, args := buildUpsert(rows)

	assert.Len(t, args, 2*upsertColumns)
	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10),($11,")
	assert.Contains(t, query, "$20)")
	assert.NotContains(t, query, "$21")
	assert.Contains(t, query, "ON CONFLICT (id) DO UPDATE")

	assert.Equal(t, "AT1", args[0])
	assert.Equal(t, "uuid-AT1", args[1])
	assert.Equal(t, pq.Array([]string{"http://x/1.jpg"}), args[9])
	assert.Nil(t, args[13].(*string), "null title of AT2 is passed as NULL")
}

// TestPostgresWriterIntegration needs a reachable database
func TestPostgresWriterIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping PostgreSQL integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pw, err := NewPostgresWriter(ctx, dsn)
	require.NoError(t, err)
	defer pw.Close()

	id := "TEST" + strings.ReplaceAll(time.Now().Format("150405.000"), ".", "")
	v := newTestVehicle(t, id, "http://x/1.jpg")
	require.NoError(t, pw.Write(ctx, ToTable([]*vehicle.Vehicle{v})))

	// second write must upsert rather than fail on the primary key
	require.NoError(t, v.Update(vehicle.Updates{"price": "£1"}))
	require.NoError(t, pw.Write(ctx, ToTable([]*vehicle.Vehicle{v})))

	table, err := pw.FetchAll(ctx)
	require.NoError(t, err)

	var found *vehicle.Flat
	for i := range table.Rows {
		if table.Rows[i].ID == id {
			found = &table.Rows[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "£1", *found.Price)
	assert.Equal(t, []string{"http://x/1.jpg"}, found.Images)

	_, err = pw.db.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id)
	assert.NoError(t, err)
}
