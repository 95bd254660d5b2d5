package sqlite

import (
	"fmt"
)

// PlateRepository implements repository.PlateRepository for SQLite.
type PlateRepository struct {
	db *DB
}

// NewPlateRepository creates a new SQLite authorized plate repository.
func NewPlateRepository(db *DB) *PlateRepository {
	return &PlateRepository{db: db}
}

// All returns every stored plate in ascending order.
func (r *PlateRepository) All() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT plate FROM authorized_plates ORDER BY plate`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plates: %w", err)
	}
	defer rows.Close()

	plates := []string{}
	for rows.Next() {
		var plate string
		if err := rows.Scan(&plate); err != nil {
			return nil, fmt.Errorf("failed to scan plate: %w", err)
		}
		plates = append(plates, plate)
	}

	return plates, rows.Err()
}

// Exists reports whether the plate is stored.
func (r *PlateRepository) Exists(plate string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM authorized_plates WHERE plate = ?`, plate).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check plate existence: %w", err)
	}
	return count > 0, nil
}

// Insert stores the plate; inserting an existing plate is a no-op.
func (r *PlateRepository) Insert(plate string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`INSERT OR IGNORE INTO authorized_plates (plate) VALUES (?)`, plate); err != nil {
		return fmt.Errorf("failed to insert plate: %w", err)
	}
	return nil
}

// Delete removes the plate if present.
func (r *PlateRepository) Delete(plate string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM authorized_plates WHERE plate = ?`, plate); err != nil {
		return fmt.Errorf("failed to delete plate: %w", err)
	}
	return nil
}

// InsertBatch stores several plates in one transaction.
func (r *PlateRepository) InsertBatch(plates []string) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO authorized_plates (plate) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, plate := range plates {
		if _, err := stmt.Exec(plate); err != nil {
			return fmt.Errorf("failed to insert plate %q: %w", plate, err)
		}
	}

	return tx.Commit()
}
