package usecase_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/usecase"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

// memDB is an in-memory stand-in for Postgres with real transaction
// semantics: a transaction works on a deep copy of the state and publishes it
// on commit, while a global mutex serializes transactions the way row locks
// serialize conflicting writers. It backs both stock.Repository and
// stock.TxManager.
type memDB struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	products  map[string]*model.Product
	variants  map[string]map[string]bool
	records   map[string]*model.StockRecord
	vrecords  map[string]*model.VariantStockRecord
	movements []model.MovementEntry
}

func newMemDB() *memDB {
	return &memDB{state: &memState{
		products: map[string]*model.Product{},
		variants: map[string]map[string]bool{},
		records:  map[string]*model.StockRecord{},
		vrecords: map[string]*model.VariantStockRecord{},
	}}
}

func (s *memState) clone() *memState {
	out := &memState{
		products:  make(map[string]*model.Product, len(s.products)),
		variants:  make(map[string]map[string]bool, len(s.variants)),
		records:   make(map[string]*model.StockRecord, len(s.records)),
		vrecords:  make(map[string]*model.VariantStockRecord, len(s.vrecords)),
		movements: append([]model.MovementEntry(nil), s.movements...),
	}
	for k, v := range s.products {
		c := *v
		out.products[k] = &c
	}
	for k, v := range s.variants {
		labels := make(map[string]bool, len(v))
		for l := range v {
			labels[l] = true
		}
		out.variants[k] = labels
	}
	for k, v := range s.records {
		c := *v
		out.records[k] = &c
	}
	for k, v := range s.vrecords {
		c := *v
		out.vrecords[k] = &c
	}
	return out
}

type memTxKey struct{}

func (db *memDB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.InTransaction(ctx) {
		return fn(ctx)
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	work := db.state.clone()
	if err := fn(context.WithValue(ctx, memTxKey{}, work)); err != nil {
		return err
	}
	db.state = work
	return nil
}

func (db *memDB) InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(memTxKey{}).(*memState)
	return ok
}

func (db *memDB) stateFor(ctx context.Context) *memState {
	if st, ok := ctx.Value(memTxKey{}).(*memState); ok {
		return st
	}
	return db.state
}

func recordKey(productID, branchID string) string { return productID + "|" + branchID }
func variantKey(productID, branchID, label string) string {
	return productID + "|" + branchID + "|" + label
}

func (db *memDB) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	if p, ok := db.stateFor(ctx).products[productID]; ok {
		c := *p
		return &c, nil
	}
	return nil, nil
}

func (db *memDB) VariantExists(ctx context.Context, productID, label string) (bool, error) {
	return db.stateFor(ctx).variants[productID][label], nil
}

func (db *memDB) GetRecordForUpdate(ctx context.Context, productID, branchID string) (*model.StockRecord, error) {
	return db.GetRecord(ctx, productID, branchID)
}

func (db *memDB) GetRecord(ctx context.Context, productID, branchID string) (*model.StockRecord, error) {
	if r, ok := db.stateFor(ctx).records[recordKey(productID, branchID)]; ok {
		c := *r
		return &c, nil
	}
	return nil, nil
}

func (db *memDB) EnsureRecord(ctx context.Context, productID, branchID string) error {
	st := db.stateFor(ctx)
	key := recordKey(productID, branchID)
	if _, ok := st.records[key]; !ok {
		st.records[key] = &model.StockRecord{
			ID: uuid.New().String(), ProductID: productID, BranchID: branchID,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
	}
	return nil
}

func (db *memDB) UpdateRecordQuantity(ctx context.Context, recordID string, quantity int64) error {
	for _, r := range db.stateFor(ctx).records {
		if r.ID == recordID {
			r.Quantity = quantity
			return nil
		}
	}
	return stock.ErrProductNotFound
}

func (db *memDB) UpdateRecordThreshold(ctx context.Context, recordID string, threshold int64) error {
	for _, r := range db.stateFor(ctx).records {
		if r.ID == recordID {
			r.MinThreshold = threshold
			return nil
		}
	}
	return stock.ErrProductNotFound
}

func (db *memDB) GetVariantRecordForUpdate(ctx context.Context, productID, branchID, label string) (*model.VariantStockRecord, error) {
	return db.GetVariantRecord(ctx, productID, branchID, label)
}

func (db *memDB) GetVariantRecord(ctx context.Context, productID, branchID, label string) (*model.VariantStockRecord, error) {
	if r, ok := db.stateFor(ctx).vrecords[variantKey(productID, branchID, label)]; ok {
		c := *r
		return &c, nil
	}
	return nil, nil
}

func (db *memDB) EnsureVariantRecord(ctx context.Context, productID, branchID, label string) error {
	st := db.stateFor(ctx)
	key := variantKey(productID, branchID, label)
	if _, ok := st.vrecords[key]; !ok {
		st.vrecords[key] = &model.VariantStockRecord{
			ID: uuid.New().String(), ProductID: productID, BranchID: branchID, VariantLabel: label,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
	}
	return nil
}

func (db *memDB) UpdateVariantRecordQuantity(ctx context.Context, recordID string, quantity int64) error {
	for _, r := range db.stateFor(ctx).vrecords {
		if r.ID == recordID {
			r.Quantity = quantity
			return nil
		}
	}
	return stock.ErrProductNotFound
}

func (db *memDB) UpdateVariantRecordThreshold(ctx context.Context, recordID string, threshold int64) error {
	for _, r := range db.stateFor(ctx).vrecords {
		if r.ID == recordID {
			r.MinThreshold = threshold
			return nil
		}
	}
	return stock.ErrProductNotFound
}

func (db *memDB) LowStockRows(ctx context.Context, branchID *string, page, pageSize int) ([]dto.LowStockRow, int, error) {
	st := db.stateFor(ctx)
	var rows []dto.LowStockRow
	for _, r := range st.records {
		if branchID != nil && r.BranchID != *branchID {
			continue
		}
		if r.MinThreshold > 0 && r.Quantity <= r.MinThreshold {
			rows = append(rows, dto.LowStockRow{ProductID: r.ProductID, BranchID: r.BranchID, Quantity: r.Quantity, MinThreshold: r.MinThreshold})
		}
	}
	for _, r := range st.vrecords {
		if branchID != nil && r.BranchID != *branchID {
			continue
		}
		if r.MinThreshold > 0 && r.Quantity <= r.MinThreshold {
			label := r.VariantLabel
			rows = append(rows, dto.LowStockRow{ProductID: r.ProductID, BranchID: r.BranchID, VariantLabel: &label, Quantity: r.Quantity, MinThreshold: r.MinThreshold})
		}
	}
	return rows, len(rows), nil
}

func (db *memDB) InsertMovement(ctx context.Context, m *model.MovementEntry) error {
	st := db.stateFor(ctx)
	st.movements = append(st.movements, *m)
	return nil
}

func (db *memDB) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.MovementEntry, int, error) {
	var out []model.MovementEntry
	for _, m := range db.stateFor(ctx).movements {
		if f.ProductID != "" && m.ProductID != f.ProductID {
			continue
		}
		if f.BranchID != "" && m.BranchID != f.BranchID {
			continue
		}
		if f.VariantLabel != nil && (m.VariantLabel == nil || *m.VariantLabel != *f.VariantLabel) {
			continue
		}
		if f.MovementKind != "" && string(m.MovementKind) != f.MovementKind {
			continue
		}
		if f.ReferenceKind != "" && string(m.ReferenceKind) != f.ReferenceKind {
			continue
		}
		out = append(out, m)
	}
	// Newest first, matching the production listing order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, len(out), nil
}

func (db *memDB) AddProductStock(ctx context.Context, productID string, delta int64) error {
	p, ok := db.stateFor(ctx).products[productID]
	if !ok {
		return stock.ErrProductNotFound
	}
	p.StockQuantity += delta
	return nil
}

func (db *memDB) SetProductStock(ctx context.Context, productID string, total int64) error {
	p, ok := db.stateFor(ctx).products[productID]
	if !ok {
		return stock.ErrProductNotFound
	}
	p.StockQuantity = total
	return nil
}

func (db *memDB) SumStock(ctx context.Context, productID string, variantShape bool) (int64, error) {
	st := db.stateFor(ctx)
	var sum int64
	if variantShape {
		for _, r := range st.vrecords {
			if r.ProductID == productID {
				sum += r.Quantity
			}
		}
	} else {
		for _, r := range st.records {
			if r.ProductID == productID {
				sum += r.Quantity
			}
		}
	}
	return sum, nil
}

func (db *memDB) SumStockForBranch(ctx context.Context, productID, branchID string, variantShape bool) (int64, error) {
	st := db.stateFor(ctx)
	var sum int64
	if variantShape {
		for _, r := range st.vrecords {
			if r.ProductID == productID && r.BranchID == branchID {
				sum += r.Quantity
			}
		}
	} else {
		for _, r := range st.records {
			if r.ProductID == productID && r.BranchID == branchID {
				sum += r.Quantity
			}
		}
	}
	return sum, nil
}

func (db *memDB) BranchesWithStock(ctx context.Context, productID string, variantShape bool) ([]string, error) {
	sums := map[string]int64{}
	st := db.stateFor(ctx)
	if variantShape {
		for _, r := range st.vrecords {
			if r.ProductID == productID {
				sums[r.BranchID] += r.Quantity
			}
		}
	} else {
		for _, r := range st.records {
			if r.ProductID == productID {
				sums[r.BranchID] += r.Quantity
			}
		}
	}
	var out []string
	for branch, sum := range sums {
		if sum > 0 {
			out = append(out, branch)
		}
	}
	return out, nil
}

func (db *memDB) ProductIDsWithStock(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	st := db.stateFor(ctx)
	for _, r := range st.records {
		seen[r.ProductID] = true
	}
	for _, r := range st.vrecords {
		seen[r.ProductID] = true
	}
	var out []string
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

// fakeLocker honors real lock semantics so lock contention paths run in tests.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return false, nil
	}
	l.held[key] = value
	return true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, value string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != value {
		return false, nil
	}
	delete(l.held, key)
	return true, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*dto.LowStockEvent
}

func (n *fakeNotifier) PublishLowStock(ctx context.Context, ev *dto.LowStockEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *fakeNotifier) published() []*dto.LowStockEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*dto.LowStockEvent(nil), n.events...)
}

// fixture wires the engine against the in-memory store.
type fixture struct {
	db       *memDB
	locker   *fakeLocker
	notifier *fakeNotifier
	uc       stock.UseCase
}

func newFixture() *fixture {
	db := newMemDB()
	locker := newFakeLocker()
	notifier := &fakeNotifier{}
	uc := usecase.NewStockUseCase(db, db, locker, notifier, logger.NewNop(), &usecase.Options{
		LockTTL:        time.Second,
		LockRetries:    50,
		LockRetryDelay: time.Millisecond,
	})
	return &fixture{db: db, locker: locker, notifier: notifier, uc: uc}
}

func (f *fixture) addProduct(id string, hasVariants bool, labels ...string) {
	f.db.state.products[id] = &model.Product{
		BaseModel:   model.BaseModel{ID: id, CreatedAt: time.Now(), UpdatedAt: time.Now()},
		SKU:         strings.ToUpper(id),
		Name:        id,
		HasVariants: hasVariants,
		IsActive:    true,
	}
	if hasVariants {
		f.db.state.variants[id] = map[string]bool{}
		for _, l := range labels {
			f.db.state.variants[id][l] = true
		}
	}
}

func (f *fixture) seedRecord(productID, branchID string, qty, threshold int64) {
	f.db.state.records[recordKey(productID, branchID)] = &model.StockRecord{
		ID: uuid.New().String(), ProductID: productID, BranchID: branchID,
		Quantity: qty, MinThreshold: threshold,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.db.state.products[productID].StockQuantity += qty
}

func (f *fixture) seedVariantRecord(productID, branchID, label string, qty, threshold int64) {
	f.db.state.vrecords[variantKey(productID, branchID, label)] = &model.VariantStockRecord{
		ID: uuid.New().String(), ProductID: productID, BranchID: branchID, VariantLabel: label,
		Quantity: qty, MinThreshold: threshold,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.db.state.products[productID].StockQuantity += qty
}

func strptr(s string) *string { return &s }
