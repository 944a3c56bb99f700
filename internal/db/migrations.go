package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS crossing_events (
		id          BIGSERIAL PRIMARY KEY,
		event_id    TEXT NOT NULL,
		camera_id   TEXT NOT NULL,
		track_id    INT NOT NULL,
		direction   TEXT NOT NULL,
		event_time  TIMESTAMPTZ NOT NULL,
		attributes  JSONB,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_crossing_events_event_id ON crossing_events(event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_crossing_events_camera_time ON crossing_events(camera_id, event_time);`,
	`CREATE INDEX IF NOT EXISTS idx_crossing_events_event_time ON crossing_events(event_time);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
