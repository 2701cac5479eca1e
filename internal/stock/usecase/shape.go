package usecase

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/stock"
)

// rowState is the locked snapshot of the row an operation targets. exists is
// false for a row that has never been written; its quantity reads as zero.
type rowState struct {
	id        string
	quantity  int64
	threshold int64
	exists    bool
}

// stockShape abstracts over the two stock representations. A product is either
// tracked per (product, branch) or per (product, branch, variant); the shape
// is selected once per operation and every row access dispatches through it,
// instead of re-branching on has_variants at each call site.
type stockShape interface {
	// Get reads the row without locking.
	Get(ctx context.Context) (*rowState, error)
	// Lock locks the row FOR UPDATE; an absent row comes back with exists=false.
	Lock(ctx context.Context) (*rowState, error)
	// LockOrCreate creates the row at quantity zero if needed, then locks it.
	LockOrCreate(ctx context.Context) (*rowState, error)
	Write(ctx context.Context, s *rowState, quantity int64) error
	WriteThreshold(ctx context.Context, s *rowState, threshold int64) error
	Variant() *string
}

type plainShape struct {
	repo      stock.Repository
	productID string
	branchID  string
}

func (s *plainShape) Get(ctx context.Context) (*rowState, error) {
	rec, err := s.repo.GetRecord(ctx, s.productID, s.branchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &rowState{}, nil
	}
	return &rowState{id: rec.ID, quantity: rec.Quantity, threshold: rec.MinThreshold, exists: true}, nil
}

func (s *plainShape) Lock(ctx context.Context) (*rowState, error) {
	rec, err := s.repo.GetRecordForUpdate(ctx, s.productID, s.branchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &rowState{}, nil
	}
	return &rowState{id: rec.ID, quantity: rec.Quantity, threshold: rec.MinThreshold, exists: true}, nil
}

func (s *plainShape) LockOrCreate(ctx context.Context) (*rowState, error) {
	if err := s.repo.EnsureRecord(ctx, s.productID, s.branchID); err != nil {
		return nil, err
	}
	return s.Lock(ctx)
}

func (s *plainShape) Write(ctx context.Context, st *rowState, quantity int64) error {
	return s.repo.UpdateRecordQuantity(ctx, st.id, quantity)
}

func (s *plainShape) WriteThreshold(ctx context.Context, st *rowState, threshold int64) error {
	return s.repo.UpdateRecordThreshold(ctx, st.id, threshold)
}

func (s *plainShape) Variant() *string { return nil }

type variantShape struct {
	repo      stock.Repository
	productID string
	branchID  string
	label     string
}

func (s *variantShape) Get(ctx context.Context) (*rowState, error) {
	rec, err := s.repo.GetVariantRecord(ctx, s.productID, s.branchID, s.label)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &rowState{}, nil
	}
	return &rowState{id: rec.ID, quantity: rec.Quantity, threshold: rec.MinThreshold, exists: true}, nil
}

func (s *variantShape) Lock(ctx context.Context) (*rowState, error) {
	rec, err := s.repo.GetVariantRecordForUpdate(ctx, s.productID, s.branchID, s.label)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &rowState{}, nil
	}
	return &rowState{id: rec.ID, quantity: rec.Quantity, threshold: rec.MinThreshold, exists: true}, nil
}

func (s *variantShape) LockOrCreate(ctx context.Context) (*rowState, error) {
	if err := s.repo.EnsureVariantRecord(ctx, s.productID, s.branchID, s.label); err != nil {
		return nil, err
	}
	return s.Lock(ctx)
}

func (s *variantShape) Write(ctx context.Context, st *rowState, quantity int64) error {
	return s.repo.UpdateVariantRecordQuantity(ctx, st.id, quantity)
}

func (s *variantShape) WriteThreshold(ctx context.Context, st *rowState, threshold int64) error {
	return s.repo.UpdateVariantRecordThreshold(ctx, st.id, threshold)
}

func (s *variantShape) Variant() *string { return &s.label }
