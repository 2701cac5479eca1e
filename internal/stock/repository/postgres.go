package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// db returns the ambient transaction when the context carries one, so every
// query in this file participates in the caller's unit of work.
func (r *PGRepository) db(ctx context.Context) sqlx.ExtContext {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.DB
}

func (r *PGRepository) GetProduct(ctx context.Context, productID string) (*model.Product, error) {
	var p model.Product
	query := `SELECT id, sku, name, base_price, has_variants, is_active, stock_quantity, created_at, updated_at
	          FROM products WHERE id = $1`
	err := sqlx.GetContext(ctx, r.db(ctx), &p, query, productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // caller maps to its own not-found error
		}
		return nil, errors.Wrap(err, "get product")
	}
	return &p, nil
}

func (r *PGRepository) VariantExists(ctx context.Context, productID, variantLabel string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM product_variants WHERE product_id = $1 AND label = $2)`
	err := sqlx.GetContext(ctx, r.db(ctx), &exists, query, productID, variantLabel)
	return exists, errors.Wrap(err, "variant exists")
}

func (r *PGRepository) GetRecordForUpdate(ctx context.Context, productID, branchID string) (*model.StockRecord, error) {
	var rec model.StockRecord
	query := `SELECT * FROM stock_records WHERE product_id = $1 AND branch_id = $2 FOR UPDATE`
	err := sqlx.GetContext(ctx, r.db(ctx), &rec, query, productID, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "lock stock record")
	}
	return &rec, nil
}

func (r *PGRepository) EnsureRecord(ctx context.Context, productID, branchID string) error {
	now := time.Now()
	query := `
        INSERT INTO stock_records (id, product_id, branch_id, quantity, min_threshold, created_at, updated_at)
        VALUES ($1, $2, $3, 0, 0, $4, $4)
        ON CONFLICT (product_id, branch_id) DO NOTHING`
	_, err := r.db(ctx).ExecContext(ctx, query, uuid.New().String(), productID, branchID, now)
	return errors.Wrap(err, "ensure stock record")
}

func (r *PGRepository) UpdateRecordQuantity(ctx context.Context, recordID string, quantity int64) error {
	query := `UPDATE stock_records SET quantity = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db(ctx).ExecContext(ctx, query, recordID, quantity, time.Now())
	if err != nil {
		return errors.Wrap(err, "update stock quantity")
	}
	return checkOneRow(res, "stock record", recordID)
}

func (r *PGRepository) UpdateRecordThreshold(ctx context.Context, recordID string, threshold int64) error {
	query := `UPDATE stock_records SET min_threshold = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db(ctx).ExecContext(ctx, query, recordID, threshold, time.Now())
	if err != nil {
		return errors.Wrap(err, "update stock threshold")
	}
	return checkOneRow(res, "stock record", recordID)
}

func (r *PGRepository) GetVariantRecordForUpdate(ctx context.Context, productID, branchID, variantLabel string) (*model.VariantStockRecord, error) {
	var rec model.VariantStockRecord
	query := `SELECT * FROM variant_stock_records
	          WHERE product_id = $1 AND branch_id = $2 AND variant_label = $3 FOR UPDATE`
	err := sqlx.GetContext(ctx, r.db(ctx), &rec, query, productID, branchID, variantLabel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "lock variant stock record")
	}
	return &rec, nil
}

func (r *PGRepository) EnsureVariantRecord(ctx context.Context, productID, branchID, variantLabel string) error {
	now := time.Now()
	query := `
        INSERT INTO variant_stock_records (id, product_id, branch_id, variant_label, quantity, min_threshold, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, 0, $5, $5)
        ON CONFLICT (product_id, branch_id, variant_label) DO NOTHING`
	_, err := r.db(ctx).ExecContext(ctx, query, uuid.New().String(), productID, branchID, variantLabel, now)
	return errors.Wrap(err, "ensure variant stock record")
}

func (r *PGRepository) UpdateVariantRecordQuantity(ctx context.Context, recordID string, quantity int64) error {
	query := `UPDATE variant_stock_records SET quantity = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db(ctx).ExecContext(ctx, query, recordID, quantity, time.Now())
	if err != nil {
		return errors.Wrap(err, "update variant stock quantity")
	}
	return checkOneRow(res, "variant stock record", recordID)
}

func (r *PGRepository) UpdateVariantRecordThreshold(ctx context.Context, recordID string, threshold int64) error {
	query := `UPDATE variant_stock_records SET min_threshold = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db(ctx).ExecContext(ctx, query, recordID, threshold, time.Now())
	if err != nil {
		return errors.Wrap(err, "update variant stock threshold")
	}
	return checkOneRow(res, "variant stock record", recordID)
}

func (r *PGRepository) GetRecord(ctx context.Context, productID, branchID string) (*model.StockRecord, error) {
	var rec model.StockRecord
	query := `SELECT * FROM stock_records WHERE product_id = $1 AND branch_id = $2`
	err := sqlx.GetContext(ctx, r.db(ctx), &rec, query, productID, branchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get stock record")
	}
	return &rec, nil
}

func (r *PGRepository) GetVariantRecord(ctx context.Context, productID, branchID, variantLabel string) (*model.VariantStockRecord, error) {
	var rec model.VariantStockRecord
	query := `SELECT * FROM variant_stock_records WHERE product_id = $1 AND branch_id = $2 AND variant_label = $3`
	err := sqlx.GetContext(ctx, r.db(ctx), &rec, query, productID, branchID, variantLabel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get variant stock record")
	}
	return &rec, nil
}

func (r *PGRepository) LowStockRows(ctx context.Context, branchID *string, page, pageSize int) ([]dto.LowStockRow, int, error) {
	cond := "min_threshold > 0 AND quantity <= min_threshold"
	args := []interface{}{}
	if branchID != nil && *branchID != "" {
		cond += " AND branch_id = $1"
		args = append(args, *branchID)
	}

	base := fmt.Sprintf(`
        SELECT product_id, branch_id, NULL AS variant_label, quantity, min_threshold
        FROM stock_records WHERE %[1]s
        UNION ALL
        SELECT product_id, branch_id, variant_label, quantity, min_threshold
        FROM variant_stock_records WHERE %[1]s`, cond)

	var count int
	countQuery := "SELECT count(*) FROM (" + base + ") low"
	if err := sqlx.GetContext(ctx, r.db(ctx), &count, countQuery, args...); err != nil {
		return nil, 0, errors.Wrap(err, "count low stock rows")
	}

	query := base + " ORDER BY product_id, branch_id, variant_label"
	if pageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, pageOffset(page, pageSize))
	}

	var rows []dto.LowStockRow
	err := sqlx.SelectContext(ctx, r.db(ctx), &rows, query, args...)
	return rows, count, errors.Wrap(err, "list low stock rows")
}

func (r *PGRepository) InsertMovement(ctx context.Context, m *model.MovementEntry) error {
	query := `
        INSERT INTO stock_movements (
            id, product_id, branch_id, variant_label,
            movement_kind, delta, quantity_before, quantity_after,
            reference_kind, reference_id, note, created_by, created_at
        )
        VALUES (
            :id, :product_id, :branch_id, :variant_label,
            :movement_kind, :delta, :quantity_before, :quantity_after,
            :reference_kind, :reference_id, :note, :created_by, :created_at
        )`
	_, err := sqlx.NamedExecContext(ctx, r.db(ctx), query, m)
	return errors.Wrap(err, "insert movement")
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.MovementEntry, int, error) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.BranchID != "" {
		conditions = append(conditions, "branch_id = :branch_id")
		args["branch_id"] = f.BranchID
	}
	if f.VariantLabel != nil {
		conditions = append(conditions, "variant_label = :variant_label")
		args["variant_label"] = *f.VariantLabel
	}
	if f.MovementKind != "" {
		conditions = append(conditions, "movement_kind = :movement_kind")
		args["movement_kind"] = f.MovementKind
	}
	if f.ReferenceKind != "" {
		conditions = append(conditions, "reference_kind = :reference_kind")
		args["reference_kind"] = f.ReferenceKind
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at < :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int
	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
	rows, err := sqlx.NamedQueryContext(ctx, r.db(ctx), countQuery, args)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count movements")
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return nil, 0, errors.Wrap(err, "scan movement count")
		}
	}

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC, id DESC"
	if f.PageSize > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, pageOffset(f.Page, f.PageSize))
	}

	var items []model.MovementEntry
	itemRows, err := sqlx.NamedQueryContext(ctx, r.db(ctx), query, args)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list movements")
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var m model.MovementEntry
		if err := itemRows.StructScan(&m); err != nil {
			return nil, 0, errors.Wrap(err, "scan movement")
		}
		items = append(items, m)
	}
	return items, count, errors.Wrap(itemRows.Err(), "iterate movements")
}

func (r *PGRepository) AddProductStock(ctx context.Context, productID string, delta int64) error {
	query := `UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = $3 WHERE id = $1`
	res, err := r.db(ctx).ExecContext(ctx, query, productID, delta, time.Now())
	if err != nil {
		return errors.Wrap(err, "add product stock")
	}
	return checkOneRow(res, "product", productID)
}

func (r *PGRepository) SetProductStock(ctx context.Context, productID string, total int64) error {
	query := `UPDATE products SET stock_quantity = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db(ctx).ExecContext(ctx, query, productID, total, time.Now())
	if err != nil {
		return errors.Wrap(err, "set product stock")
	}
	return checkOneRow(res, "product", productID)
}

func (r *PGRepository) SumStock(ctx context.Context, productID string, variantShape bool) (int64, error) {
	var sum int64
	query := fmt.Sprintf(`SELECT COALESCE(SUM(quantity), 0) FROM %s WHERE product_id = $1`, shapeTable(variantShape))
	err := sqlx.GetContext(ctx, r.db(ctx), &sum, query, productID)
	return sum, errors.Wrap(err, "sum stock")
}

func (r *PGRepository) SumStockForBranch(ctx context.Context, productID, branchID string, variantShape bool) (int64, error) {
	var sum int64
	query := fmt.Sprintf(`SELECT COALESCE(SUM(quantity), 0) FROM %s WHERE product_id = $1 AND branch_id = $2`, shapeTable(variantShape))
	err := sqlx.GetContext(ctx, r.db(ctx), &sum, query, productID, branchID)
	return sum, errors.Wrap(err, "sum stock for branch")
}

func (r *PGRepository) BranchesWithStock(ctx context.Context, productID string, variantShape bool) ([]string, error) {
	query := fmt.Sprintf(`
        SELECT branch_id FROM %s WHERE product_id = $1
        GROUP BY branch_id HAVING SUM(quantity) > 0
        ORDER BY branch_id`, shapeTable(variantShape))
	var branches []string
	err := sqlx.SelectContext(ctx, r.db(ctx), &branches, query, productID)
	return branches, errors.Wrap(err, "branches with stock")
}

func (r *PGRepository) ProductIDsWithStock(ctx context.Context) ([]string, error) {
	query := `
        SELECT DISTINCT product_id FROM stock_records
        UNION
        SELECT DISTINCT product_id FROM variant_stock_records`
	var ids []string
	err := sqlx.SelectContext(ctx, r.db(ctx), &ids, query)
	return ids, errors.Wrap(err, "product ids with stock")
}

func shapeTable(variantShape bool) string {
	if variantShape {
		return "variant_stock_records"
	}
	return "stock_records"
}

// pageOffset treats anything below page 1 as the first page, so a careless
// caller cannot produce a negative OFFSET.
func pageOffset(page, pageSize int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * pageSize
}

func checkOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Errorf("%s %s not found", entity, id)
	}
	return nil
}
