package sqlite

import (
	"database/sql"
	"fmt"

	"lprserver/internal/model"
)

// ReadRepository implements repository.ReadRepository for SQLite.
type ReadRepository struct {
	db *DB
}

// NewReadRepository creates a new SQLite plate read repository.
func NewReadRepository(db *DB) *ReadRepository {
	return &ReadRepository{db: db}
}

// Insert adds a read and its detections.
func (r *ReadRepository) Insert(read *model.PlateRead) error {
	return r.InsertBatch([]model.PlateRead{*read})
}

// InsertBatch adds multiple reads in a single transaction.
func (r *ReadRepository) InsertBatch(reads []model.PlateRead) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	readStmt, err := tx.Prepare(`
		INSERT INTO plate_reads (id, plate_text, confidence, authorized, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer readStmt.Close()

	detStmt, err := tx.Prepare(`
		INSERT INTO read_detections (read_id, position, x1, y1, x2, y2, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer detStmt.Close()

	for _, read := range reads {
		var confidence sql.NullFloat64
		if read.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *read.Confidence, Valid: true}
		}
		if _, err := readStmt.Exec(read.ID, read.PlateText, confidence, read.Authorized, read.Source, read.Timestamp.UTC()); err != nil {
			return fmt.Errorf("failed to insert read: %w", err)
		}
		for i, det := range read.Detections {
			b := det.BBox
			if _, err := detStmt.Exec(read.ID, i, b.X1, b.Y1, b.X2, b.Y2, det.Confidence); err != nil {
				return fmt.Errorf("failed to insert detection: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetByID retrieves a read by its ID. A missing read yields nil, nil.
func (r *ReadRepository) GetByID(id string) (*model.PlateRead, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var read model.PlateRead
	var confidence sql.NullFloat64
	err := r.db.Conn().QueryRow(`
		SELECT id, plate_text, confidence, authorized, source, timestamp
		FROM plate_reads WHERE id = ?
	`, id).Scan(&read.ID, &read.PlateText, &confidence, &read.Authorized, &read.Source, &read.Timestamp)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get read: %w", err)
	}
	if confidence.Valid {
		read.Confidence = &confidence.Float64
	}

	if read.Detections, err = r.detections(read.ID); err != nil {
		return nil, err
	}
	return &read, nil
}

// GetAll retrieves reads matching the filter, newest first.
func (r *ReadRepository) GetAll(filter *model.ReadFilter) ([]model.PlateRead, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildReadFilter(filter)
	query := `SELECT id, plate_text, confidence, authorized, source, timestamp FROM plate_reads` + where +
		` ORDER BY timestamp DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reads: %w", err)
	}

	reads := []model.PlateRead{}
	for rows.Next() {
		var read model.PlateRead
		var confidence sql.NullFloat64
		if err := rows.Scan(&read.ID, &read.PlateText, &confidence, &read.Authorized, &read.Source, &read.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan read: %w", err)
		}
		if confidence.Valid {
			c := confidence.Float64
			read.Confidence = &c
		}
		reads = append(reads, read)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reads: %w", err)
	}

	// The pool holds a single connection, so detections are loaded only
	// after the outer rows are closed.
	for i := range reads {
		if reads[i].Detections, err = r.detections(reads[i].ID); err != nil {
			return nil, err
		}
	}

	return reads, nil
}

// GetTotalCount returns the number of reads matching the filter.
func (r *ReadRepository) GetTotalCount(filter *model.ReadFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := buildReadFilter(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM plate_reads`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count reads: %w", err)
	}
	return count, nil
}

// DeleteAll removes all reads and their detections.
func (r *ReadRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM read_detections`); err != nil {
		return fmt.Errorf("failed to delete detections: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM plate_reads`); err != nil {
		return fmt.Errorf("failed to delete reads: %w", err)
	}
	return nil
}

// detections loads the stored detections of one read. Callers hold the lock.
func (r *ReadRepository) detections(readID string) ([]model.Detection, error) {
	rows, err := r.db.Conn().Query(`
		SELECT x1, y1, x2, y2, confidence
		FROM read_detections WHERE read_id = ? ORDER BY position
	`, readID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.Detection{}
	for rows.Next() {
		var det model.Detection
		if err := rows.Scan(&det.BBox.X1, &det.BBox.Y1, &det.BBox.X2, &det.BBox.Y2, &det.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, det)
	}
	return detections, rows.Err()
}

func buildReadFilter(filter *model.ReadFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Plate != "" {
		query += " AND plate_text = ?"
		args = append(args, filter.Plate)
	}

	if filter.Authorized != nil {
		query += " AND authorized = ?"
		args = append(args, *filter.Authorized)
	}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UTC())
	}

	return query, args
}
