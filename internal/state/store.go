package state

import (
	"sync"

	"datalens/domain/table"
	"datalens/internal/errors"
)

// Store holds the current working dataset and its describe table. All
// four fields swap together on a successful Replace; readers never see
// a partially updated state. The source system mutated this on a
// single event loop; here a mutex gives the same guarantee under
// concurrent handlers.
type Store struct {
	mu       sync.RWMutex
	dataset  table.Table
	describe table.Table
	version  uint64
	loaded   bool
}

// NewStore returns an empty store at version zero.
func NewStore() *Store {
	return &Store{}
}

// Prepare validates the four-field payload and builds the tables that
// Install would swap in, index column included. It touches no store
// state; callers use it to do the heavy validation outside any lock
// and decide afterwards whether the result is still wanted.
func Prepare(p *table.Payload) (dataset, describe table.Table, err error) {
	if p == nil {
		return dataset, describe, errors.StructuralError("service response is empty")
	}
	if p.Headers == nil {
		return dataset, describe, errors.StructuralError("service response is missing headers")
	}
	if p.Rows == nil {
		return dataset, describe, errors.StructuralError("service response is missing data")
	}
	if p.DescribedHeaders == nil {
		return dataset, describe, errors.StructuralError("service response is missing headers_described")
	}
	if p.DescribedRows == nil {
		return dataset, describe, errors.StructuralError("service response is missing data_described")
	}

	dataset = table.Table{Headers: p.Headers, Rows: p.Rows}
	describe = table.Table{Headers: p.DescribedHeaders, Rows: p.DescribedRows}

	if verr := dataset.Validate(); verr != nil {
		return dataset, describe, errors.Wrap(errors.StructuralError("dataset rows do not match headers"), verr.Error())
	}
	if verr := describe.Validate(); verr != nil {
		return dataset, describe, errors.Wrap(errors.StructuralError("describe rows do not match headers"), verr.Error())
	}
	return dataset.WithIndex(), describe, nil
}

// Install swaps in prepared tables. All four fields move together and
// the version bumps once.
func (s *Store) Install(dataset, describe table.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = dataset
	s.describe = describe
	s.version++
	s.loaded = true
}

// Replace validates the payload and, on success, atomically swaps the
// dataset and describe table, injecting the synthetic index column
// first. On any structural problem the prior state is left untouched
// and a STRUCTURAL_ERROR is returned.
func (s *Store) Replace(p *table.Payload) error {
	dataset, describe, err := Prepare(p)
	if err != nil {
		return err
	}
	s.Install(dataset, describe)
	return nil
}

// Snapshot returns the current dataset, describe table and version.
// The returned tables share row maps with the store; callers treat
// them as read-only.
func (s *Store) Snapshot() (dataset, describe table.Table, version uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.describe, s.version
}

// Dataset returns only the working dataset.
func (s *Store) Dataset() table.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Version returns the replacement counter; it bumps once per
// successful Replace.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Loaded reports whether any dataset has been accepted yet.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
