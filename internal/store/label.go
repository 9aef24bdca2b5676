package store

import "database/sql"

// ClassLabel represents one defect class with its expected joint
// temperature band.
type ClassLabel struct {
	ClassID int
	Label   string
	TempMin float64
	TempMax float64
}

// LabelRepository provides read access to the seeded defect classes.
type LabelRepository struct {
	db *sql.DB
}

// Labels returns the class label repository for this store.
func (s *Store) Labels() *LabelRepository {
	return &LabelRepository{db: s.db}
}

// List retrieves all defect classes ordered by class ID.
func (r *LabelRepository) List() ([]*ClassLabel, error) {
	rows, err := r.db.Query(
		`SELECT class_id, label, temp_min, temp_max FROM class_labels ORDER BY class_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []*ClassLabel
	for rows.Next() {
		l := &ClassLabel{}
		if err := rows.Scan(&l.ClassID, &l.Label, &l.TempMin, &l.TempMax); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return labels, nil
}
