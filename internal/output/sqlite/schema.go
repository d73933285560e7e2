package sqlite

import (
	"database/sql"

	"codeberg.org/okkola/labdaq/internal/errors"
)

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS samples (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            device_id TEXT NOT NULL,
            channel INTEGER NOT NULL,
            timestamp_ns INTEGER NOT NULL,
            raw REAL NOT NULL,
            value REAL,
            unit TEXT NOT NULL,
            valid INTEGER NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_samples_device_time
            ON samples (device_id, timestamp_ns);
    `)
	if err != nil {
		return errors.New().Wrap(ErrStorageInit, err)
	}

	return nil
}

const insertSampleSQL = `
        INSERT INTO samples (device_id, channel, timestamp_ns, raw, value, unit, valid)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
