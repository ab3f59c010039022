package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogService manages clients and products, the master data every ledger refers to.
type CatalogService interface {
	CreateClient(ctx context.Context, in ClientInput) (*Client, error)
	UpdateClient(ctx context.Context, id int, in ClientInput) (*Client, error)
	GetClient(ctx context.Context, id int) (*Client, error)
	ListClients(ctx context.Context, f ClientFilter) (*Page[Client], error)

	// CreateProduct inserts a product; a non-nil BasePrice opens its price history.
	CreateProduct(ctx context.Context, in ProductInput) (*Product, error)
	// UpdateProduct edits descriptive fields. The base price is not touched here.
	// Changing the category of a product already sold on a validated invoice is rejected.
	UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, error)
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context, f ProductFilter) (*Page[Product], error)
}

type catalogService struct {
	pool  *pgxpool.Pool
	audit AuditSink
}

func NewCatalogService(pool *pgxpool.Pool, sink AuditSink) CatalogService {
	return &catalogService{pool: pool, audit: sink}
}

const clientColumns = `id, name, company_name, email, phone, address, is_active, created_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.CompanyName, &c.Email, &c.Phone, &c.Address, &c.IsActive, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func validateClientInput(in ClientInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return validationf("client name is required")
	}
	return nil
}

func (s *catalogService) CreateClient(ctx context.Context, in ClientInput) (*Client, error) {
	if err := validateClientInput(in); err != nil {
		return nil, err
	}
	c, err := scanClient(s.pool.QueryRow(ctx, `
		INSERT INTO clients (name, company_name, email, phone, address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+clientColumns,
		strings.TrimSpace(in.Name), in.CompanyName, in.Email, in.Phone, in.Address, in.IsActive,
	))
	if err != nil {
		return nil, wrapPgError(err, "create client")
	}
	audit(ctx, s.audit, "client.create", "client", c.ID, "", nil, c)
	return c, nil
}

func (s *catalogService) UpdateClient(ctx context.Context, id int, in ClientInput) (*Client, error) {
	if err := validateClientInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := scanClient(tx.QueryRow(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("client %d", id)
		}
		return nil, fmt.Errorf("failed to lock client %d: %w", id, err)
	}

	after, err := scanClient(tx.QueryRow(ctx, `
		UPDATE clients
		SET name = $1, company_name = $2, email = $3, phone = $4, address = $5, is_active = $6
		WHERE id = $7
		RETURNING `+clientColumns,
		strings.TrimSpace(in.Name), in.CompanyName, in.Email, in.Phone, in.Address, in.IsActive, id,
	))
	if err != nil {
		return nil, wrapPgError(err, "update client")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client update: %w", err)
	}
	audit(ctx, s.audit, "client.update", "client", id, "", before, after)
	return after, nil
}

func (s *catalogService) GetClient(ctx context.Context, id int) (*Client, error) {
	return getClient(ctx, s.pool, id)
}

func getClient(ctx context.Context, q pgxQuerier, id int) (*Client, error) {
	c, err := scanClient(q.QueryRow(ctx, "SELECT "+clientColumns+" FROM clients WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("client %d", id)
		}
		return nil, fmt.Errorf("failed to fetch client %d: %w", id, err)
	}
	return c, nil
}

func (s *catalogService) ListClients(ctx context.Context, f ClientFilter) (*Page[Client], error) {
	p := f.PageRequest.normalize()
	var w whereBuilder
	if !f.IncludeInactive {
		w.add("is_active = ?", true)
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("(name ILIKE ? OR company_name ILIKE ? OR email ILIKE ?)", "%"+q+"%")
	}

	page := &Page[Client]{Page: p.Page, PageSize: p.PageSize}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clients"+w.sql(), w.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", err)
	}

	where := w.sql()
	limit, args := w.page(p)
	rows, err := s.pool.Query(ctx, "SELECT "+clientColumns+" FROM clients"+where+" ORDER BY name, id"+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	page.Items = []Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		page.Items = append(page.Items, *c)
	}
	return page, rows.Err()
}

// ── Products ─────────────────────────────────────────────────────────────────

const productColumns = `id, name, sale_unit, category, base_price, low_stock_threshold, is_active, created_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.SaleUnit, &p.Category, &p.BasePrice,
		&p.LowStockThreshold, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func validateProductInput(in ProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return validationf("product name is required")
	}
	if !in.Category.Valid() {
		return validationf("unknown product category %q", in.Category)
	}
	if !in.SaleUnit.Valid() {
		return validationf("unknown sale unit %q", in.SaleUnit)
	}
	if in.LowStockThreshold.IsNegative() {
		return validationf("low stock threshold cannot be negative, got %s", in.LowStockThreshold)
	}
	if in.BasePrice != nil && in.BasePrice.IsNegative() {
		return validationf("base price cannot be negative, got %s", in.BasePrice)
	}
	return nil
}

func (s *catalogService) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := scanProduct(tx.QueryRow(ctx, `
		INSERT INTO products (name, sale_unit, category, base_price, low_stock_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		strings.TrimSpace(in.Name), string(in.SaleUnit), string(in.Category), in.BasePrice, in.LowStockThreshold, in.IsActive,
	))
	if err != nil {
		return nil, wrapPgError(err, "create product")
	}

	if p.BasePrice != nil {
		if _, err := tx.Exec(ctx,
			"INSERT INTO product_price_history (product_id, price, actor) VALUES ($1, $2, $3)",
			p.ID, *p.BasePrice, ActorFrom(ctx),
		); err != nil {
			return nil, fmt.Errorf("failed to record initial price: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}
	audit(ctx, s.audit, "product.create", "product", p.ID, "", nil, p)
	return p, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, id int, in ProductInput) (*Product, error) {
	if err := validateProductInput(in); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := scanProduct(tx.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product %d", id)
		}
		return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
	}

	if before.Category != in.Category {
		sold, err := soldOnValidatedInvoice(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if sold {
			return nil, invalidStatef("product %s is on a validated invoice; its category cannot change", before.Name)
		}
	}

	after, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products
		SET name = $1, sale_unit = $2, category = $3, low_stock_threshold = $4, is_active = $5
		WHERE id = $6
		RETURNING `+productColumns,
		strings.TrimSpace(in.Name), string(in.SaleUnit), string(in.Category), in.LowStockThreshold, in.IsActive, id,
	))
	if err != nil {
		return nil, wrapPgError(err, "update product")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit product update: %w", err)
	}
	audit(ctx, s.audit, "product.update", "product", id, "", before, after)
	return after, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id int) (*Product, error) {
	return getProduct(ctx, s.pool, id)
}

func getProduct(ctx context.Context, q pgxQuerier, id int) (*Product, error) {
	p, err := scanProduct(q.QueryRow(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("product %d", id)
		}
		return nil, fmt.Errorf("failed to fetch product %d: %w", id, err)
	}
	return p, nil
}

func (s *catalogService) ListProducts(ctx context.Context, f ProductFilter) (*Page[Product], error) {
	p := f.PageRequest.normalize()
	var w whereBuilder
	if !f.IncludeInactive {
		w.add("is_active = ?", true)
	}
	if f.Category != "" {
		w.add("category = ?", string(f.Category))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("name ILIKE ?", "%"+q+"%")
	}

	page := &Page[Product]{Page: p.Page, PageSize: p.PageSize}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM products"+w.sql(), w.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	where := w.sql()
	limit, args := w.page(p)
	rows, err := s.pool.Query(ctx, "SELECT "+productColumns+" FROM products"+where+" ORDER BY name, id"+limit, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	page.Items = []Product{}
	for rows.Next() {
		prod, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		page.Items = append(page.Items, *prod)
	}
	return page, rows.Err()
}

// soldOnValidatedInvoice reports whether any validated or contested invoice has a line for productID.
func soldOnValidatedInvoice(ctx context.Context, q pgxQuerier, productID int) (bool, error) {
	var sold bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM invoice_lines il
			JOIN invoices i ON i.id = il.invoice_id
			WHERE il.product_id = $1 AND i.status IN ('VALIDATED', 'CONTESTED')
		)`, productID).Scan(&sold)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice usage of product %d: %w", productID, err)
	}
	return sold, nil
}
