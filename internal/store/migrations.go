package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Inspection records table - one row per persisted detection
		`CREATE TABLE IF NOT EXISTS inspection_records (
			id TEXT PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			defect_type TEXT NOT NULL,
			confidence REAL NOT NULL,
			temperature REAL NOT NULL DEFAULT 0,
			distance REAL NOT NULL DEFAULT 0,
			line_number TEXT NOT NULL DEFAULT '',
			pole_number TEXT NOT NULL DEFAULT '',
			ambient_temperature REAL NOT NULL DEFAULT 0,
			weather_conditions TEXT NOT NULL DEFAULT '',
			inspector_name TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Class labels table - the joint defect classes the model reports
		`CREATE TABLE IF NOT EXISTS class_labels (
			class_id INTEGER PRIMARY KEY,
			label TEXT NOT NULL UNIQUE,
			temp_min REAL NOT NULL,
			temp_max REAL NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Query indexes
		`CREATE INDEX IF NOT EXISTS idx_inspection_records_timestamp ON inspection_records(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_inspection_records_defect_type ON inspection_records(defect_type)`,

		// Seed the defect classes with their expected temperature bands.
		// Class IDs, labels, and bands must agree with the detector's
		// class table; records store these labels verbatim.
		`INSERT OR IGNORE INTO class_labels (class_id, label, temp_min, temp_max) VALUES
			(0, '1-1A-Fired Wedge Joint-BARE', 35, 65),
			(1, '1-1B-Fired Wedge Joint-COVERED', 30, 55),
			(2, '2-2A-Hammer Driven Wedge Joint-BARE', 32, 60),
			(3, '2-2B-Hammer Driven Wedge Joint-COVERED', 28, 50)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
