package sqlite_test

import (
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/okkola/labdaq/internal/output/sqlite"
	"codeberg.org/okkola/labdaq/internal/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labdaq.db")

	archive, err := sqlite.New(sqlite.Config{DBPath: path, BatchSize: 2})
	require.NoError(t, err)

	now := time.Now()
	samples := []sample.Sample{
		{DeviceID: "dvm-1", Channel: 0, Timestamp: now, Raw: 0.5, Value: 0.05, Unit: "V", Valid: true},
		{DeviceID: "bridge-1", Channel: 1, Timestamp: now.Add(time.Millisecond), Raw: 15000, Value: math.NaN(), Unit: "K", Valid: false},
		{DeviceID: "bridge-1", Channel: 1, Timestamp: now.Add(2 * time.Millisecond), Raw: 3000, Value: 4.2, Unit: "K", Valid: true},
	}

	require.NoError(t, archive.Publish(samples))
	require.NoError(t, archive.Close()) // drains the remaining buffered sample

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&count))
	assert.Equal(t, 3, count)

	// The out-of-domain sample archives with a NULL value.
	var value sql.NullFloat64
	var valid int
	require.NoError(t, db.QueryRow(
		"SELECT value, valid FROM samples WHERE device_id = 'bridge-1' AND valid = 0").
		Scan(&value, &valid))
	assert.False(t, value.Valid)
	assert.Equal(t, 0, valid)
}

func TestArchiveRequiresPath(t *testing.T) {
	_, err := sqlite.New(sqlite.Config{})
	require.Error(t, err)
}
