package store

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Metadata carries the operator-entered context attached to every record
// persisted during a session.
type Metadata struct {
	Distance           float64
	LineNumber         string
	PoleNumber         string
	AmbientTemperature float64
	WeatherConditions  string
	InspectorName      string
}

// InspectionRecord represents one persisted detection.
type InspectionRecord struct {
	ID                 string
	Timestamp          time.Time
	DefectType         string
	Confidence         float64
	Temperature        float64
	Distance           float64
	LineNumber         string
	PoleNumber         string
	AmbientTemperature float64
	WeatherConditions  string
	InspectorName      string
	CreatedAt          time.Time
}

// RecordRepository provides CRUD operations for inspection records.
type RecordRepository struct {
	db *sql.DB
}

// Records returns the inspection record repository for this store.
func (s *Store) Records() *RecordRepository {
	return &RecordRepository{db: s.db}
}

// Create inserts a new inspection record into the database.
func (r *RecordRepository) Create(rec *InspectionRecord) error {
	rec.CreatedAt = time.Now()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = rec.CreatedAt
	}

	_, err := r.db.Exec(
		`INSERT INTO inspection_records
		 (id, timestamp, defect_type, confidence, temperature, distance,
		  line_number, pole_number, ambient_temperature, weather_conditions,
		  inspector_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp, rec.DefectType, rec.Confidence, rec.Temperature,
		rec.Distance, rec.LineNumber, rec.PoleNumber, rec.AmbientTemperature,
		rec.WeatherConditions, rec.InspectorName, rec.CreatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByID retrieves an inspection record by its ID.
func (r *RecordRepository) GetByID(id string) (*InspectionRecord, error) {
	rec := &InspectionRecord{}

	err := r.db.QueryRow(
		`SELECT id, timestamp, defect_type, confidence, temperature, distance,
		        line_number, pole_number, ambient_temperature, weather_conditions,
		        inspector_name, created_at
		 FROM inspection_records WHERE id = ?`,
		id,
	).Scan(
		&rec.ID, &rec.Timestamp, &rec.DefectType, &rec.Confidence, &rec.Temperature,
		&rec.Distance, &rec.LineNumber, &rec.PoleNumber, &rec.AmbientTemperature,
		&rec.WeatherConditions, &rec.InspectorName, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return rec, nil
}

// Recent retrieves the newest limit records, most recent first.
func (r *RecordRepository) Recent(limit int) ([]*InspectionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, timestamp, defect_type, confidence, temperature, distance,
		        line_number, pole_number, ambient_temperature, weather_conditions,
		        inspector_name, created_at
		 FROM inspection_records ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// List retrieves all inspection records, most recent first.
func (r *RecordRepository) List() ([]*InspectionRecord, error) {
	rows, err := r.db.Query(
		`SELECT id, timestamp, defect_type, confidence, temperature, distance,
		        line_number, pole_number, ambient_temperature, weather_conditions,
		        inspector_name, created_at
		 FROM inspection_records ORDER BY timestamp DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Delete removes an inspection record by its ID.
func (r *RecordRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM inspection_records WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// Clear removes every inspection record.
func (r *RecordRepository) Clear() error {
	_, err := r.db.Exec(`DELETE FROM inspection_records`)
	return err
}

// Count returns the total number of inspection records.
func (r *RecordRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM inspection_records`).Scan(&n)
	return n, err
}

// CountByDefect returns record counts grouped by defect type.
func (r *RecordRepository) CountByDefect() (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT defect_type, COUNT(*) FROM inspection_records GROUP BY defect_type`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var defect string
		var n int
		if err := rows.Scan(&defect, &n); err != nil {
			return nil, err
		}
		counts[defect] = n
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// ExportCSV writes every record to w as CSV, header row first.
func (r *RecordRepository) ExportCSV(w io.Writer) error {
	records, err := r.List()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"id", "timestamp", "defect_type", "confidence", "temperature",
		"distance", "line_number", "pole_number", "ambient_temperature",
		"weather_conditions", "inspector_name",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range records {
		row := []string{
			rec.ID,
			rec.Timestamp.Format(time.RFC3339),
			rec.DefectType,
			strconv.FormatFloat(rec.Confidence, 'f', 4, 64),
			strconv.FormatFloat(rec.Temperature, 'f', 1, 64),
			strconv.FormatFloat(rec.Distance, 'f', 2, 64),
			rec.LineNumber,
			rec.PoleNumber,
			strconv.FormatFloat(rec.AmbientTemperature, 'f', 1, 64),
			rec.WeatherConditions,
			rec.InspectorName,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func scanRecords(rows *sql.Rows) ([]*InspectionRecord, error) {
	var records []*InspectionRecord
	for rows.Next() {
		rec := &InspectionRecord{}
		err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.DefectType, &rec.Confidence, &rec.Temperature,
			&rec.Distance, &rec.LineNumber, &rec.PoleNumber, &rec.AmbientTemperature,
			&rec.WeatherConditions, &rec.InspectorName, &rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
