package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salehm/coaching-store/internal/catalog/application"
	"github.com/salehm/coaching-store/internal/catalog/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

const productColumns = `id, category_id, name_ar, name_en, price, sale_price, stock_quantity, track_inventory, sku, images, status`

// Products batch-resolves product snapshots for checkout. Missing ids are
// simply absent from the map.
func (r *Repository) Products(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *Repository) Product(ctx context.Context, id string) (*domain.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) ListProducts(ctx context.Context, f application.ProductFilter) ([]domain.Product, int, error) {
	var conds []string
	var args []any
	if f.CategoryID != "" {
		args = append(args, f.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(name_ar ILIKE $%d OR name_en ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		productColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *Repository) ShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name_ar, name_en, company, price, free_shipping_threshold,
			estimated_days_min, estimated_days_max, display_order, is_active
		FROM shipping_methods WHERE is_active = true ORDER BY display_order`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var methods []domain.ShippingMethod
	for rows.Next() {
		var m domain.ShippingMethod
		if err := rows.Scan(&m.ID, &m.NameAr, &m.NameEn, &m.Company, &m.Price, &m.FreeShippingThreshold,
			&m.EstimatedDaysMin, &m.EstimatedDaysMax, &m.DisplayOrder, &m.IsActive); err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *Repository) ShippingMethod(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	var m domain.ShippingMethod
	err := r.pool.QueryRow(ctx, `SELECT id, name_ar, name_en, company, price, free_shipping_threshold,
			estimated_days_min, estimated_days_max, display_order, is_active
		FROM shipping_methods WHERE id = $1`, id).
		Scan(&m.ID, &m.NameAr, &m.NameEn, &m.Company, &m.Price, &m.FreeShippingThreshold,
			&m.EstimatedDaysMin, &m.EstimatedDaysMax, &m.DisplayOrder, &m.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// CouponByCode matches case-insensitively; codes are stored upper-cased.
func (r *Repository) CouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, `SELECT id, code, discount_type, discount_value, minimum_order_amount,
			expires_at, usage_limit, times_used, is_active
		FROM coupons WHERE UPPER(code) = UPPER($1)`, code).
		Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinimumOrderAmount,
			&c.ExpiresAt, &c.UsageLimit, &c.TimesUsed, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	var images []byte
	err := row.Scan(&p.ID, &p.CategoryID, &p.NameAr, &p.NameEn, &p.Price, &p.SalePrice,
		&p.StockQuantity, &p.TrackInventory, &p.SKU, &images, &p.Status)
	if err != nil {
		return domain.Product{}, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return domain.Product{}, err
		}
	}
	return p, nil
}
