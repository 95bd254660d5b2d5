package repository

import (
	"lprserver/internal/model"
)

// PlateRepository persists the authorized plate set. Values are stored as
// given; normalization is the caller's job.
type PlateRepository interface {
	// Read operations
	All() ([]string, error)
	Exists(plate string) (bool, error)

	// Write operations
	Insert(plate string) error
	Delete(plate string) error
}

// ReadRepository persists the history of plate reads.
type ReadRepository interface {
	// Create operations
	Insert(read *model.PlateRead) error
	InsertBatch(reads []model.PlateRead) error

	// Read operations
	GetByID(id string) (*model.PlateRead, error)
	GetAll(filter *model.ReadFilter) ([]model.PlateRead, error)
	GetTotalCount(filter *model.ReadFilter) (int, error)

	// Delete operations
	DeleteAll() error
}
