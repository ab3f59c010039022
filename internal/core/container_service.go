package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ContainerService tracks planned versus received quantities per container and
// posts received goods to the stock ledger when a container is validated.
type ContainerService interface {
	Create(ctx context.Context, in ContainerInput) (*Container, error)
	Get(ctx context.Context, id int) (*Container, error)
	List(ctx context.Context, f ContainerFilter) (*Page[Container], error)

	SetActualArrival(ctx context.Context, id int, date time.Time) (*Container, error)
	// AddManifestLine sets the planned quantity for a product, replacing any earlier value.
	// The first manifest line moves a PLANNED container to IN_PROGRESS.
	AddManifestLine(ctx context.Context, id, productID int, plannedQty decimal.Decimal) (*Container, error)
	RemoveManifestLine(ctx context.Context, id, productID int) (*Container, error)
	// AddReceivedLine sets the received quantity for a product, replacing any earlier value.
	AddReceivedLine(ctx context.Context, id int, in ReceivedLineInput) (*Container, error)
	RemoveReceivedLine(ctx context.Context, id, productID int) (*Container, error)

	// Reconcile reports planned versus received per product. Mismatches never block validation.
	Reconcile(ctx context.Context, id int) ([]Discrepancy, error)
	// Validate posts one RECEPTION per received line and marks the container VALIDATED,
	// all in one transaction.
	Validate(ctx context.Context, id int) (*Container, error)
}

type containerService struct {
	pool  *pgxpool.Pool
	stock StockLedger
	audit AuditSink
}

func NewContainerService(pool *pgxpool.Pool, stock StockLedger, sink AuditSink) ContainerService {
	return &containerService{pool: pool, stock: stock, audit: sink}
}

const containerColumns = `id, ref, estimated_arrival, actual_arrival, status, notes, validated_at, created_at`

func scanContainer(row pgx.Row) (*Container, error) {
	var c Container
	if err := row.Scan(&c.ID, &c.Ref, &c.EstimatedArrival, &c.ActualArrival, &c.Status,
		&c.Notes, &c.ValidatedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *containerService) Create(ctx context.Context, in ContainerInput) (*Container, error) {
	ref := strings.TrimSpace(in.Ref)
	if ref == "" {
		return nil, validationf("container ref is required")
	}
	if in.EstimatedArrival.IsZero() {
		return nil, validationf("estimated arrival date is required")
	}

	c, err := scanContainer(s.pool.QueryRow(ctx, `
		INSERT INTO containers (ref, estimated_arrival, notes)
		VALUES ($1, $2, $3)
		RETURNING `+containerColumns,
		ref, in.EstimatedArrival, in.Notes,
	))
	if err != nil {
		return nil, wrapPgError(err, "create container")
	}
	c.Manifest, c.Received = []ManifestLine{}, []ReceivedLine{}
	audit(ctx, s.audit, "container.create", "container", c.ID, "", nil, c)
	return c, nil
}

func (s *containerService) Get(ctx context.Context, id int) (*Container, error) {
	return s.load(ctx, s.pool, id)
}

func (s *containerService) load(ctx context.Context, q pgxQuerier, id int) (*Container, error) {
	c, err := scanContainer(q.QueryRow(ctx, "SELECT "+containerColumns+" FROM containers WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("container %d", id)
		}
		return nil, fmt.Errorf("failed to fetch container %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `
		SELECT l.id, l.product_id, p.name, l.planned_qty
		FROM container_manifest_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.container_id = $1
		ORDER BY p.name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest lines: %w", err)
	}
	c.Manifest, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (ManifestLine, error) {
		var l ManifestLine
		err := row.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.PlannedQty)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan manifest lines: %w", err)
	}

	c.Received, err = receivedLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// receivedLines returns the container's received lines ordered by product id,
// the order in which validation locks product rows.
func receivedLines(ctx context.Context, q pgxQuerier, containerID int) ([]ReceivedLine, error) {
	rows, err := q.Query(ctx, `
		SELECT l.id, l.product_id, p.name, l.received_qty, l.breakage_qty, l.comment
		FROM container_received_lines l
		JOIN products p ON p.id = l.product_id
		WHERE l.container_id = $1
		ORDER BY l.product_id
	`, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query received lines: %w", err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ReceivedLine, error) {
		var l ReceivedLine
		err := row.Scan(&l.ID, &l.ProductID, &l.ProductName, &l.ReceivedQty, &l.BreakageQty, &l.Comment)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan received lines: %w", err)
	}
	return lines, nil
}

func (s *containerService) List(ctx context.Context, f ContainerFilter) (*Page[Container], error) {
	p := f.PageRequest.normalize()
	var w whereBuilder
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		w.add("(ref ILIKE ? OR notes ILIKE ?)", "%"+q+"%")
	}
	if f.From != nil {
		w.add("estimated_arrival >= ?", *f.From)
	}
	if f.To != nil {
		w.add("estimated_arrival <= ?", *f.To)
	}

	page := &Page[Container]{Page: p.Page, PageSize: p.PageSize}
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM containers"+w.sql(), w.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count containers: %w", err)
	}

	where := w.sql()
	limit, args := w.page(p)
	rows, err := s.pool.Query(ctx,
		"SELECT "+containerColumns+" FROM containers"+where+" ORDER BY estimated_arrival DESC, id DESC"+limit,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query containers: %w", err)
	}
	defer rows.Close()

	page.Items = []Container{}
	for rows.Next() {
		c, err := scanContainer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		page.Items = append(page.Items, *c)
	}
	return page, rows.Err()
}

// lockEditable locks the container row and rejects edits once it is VALIDATED.
func lockEditable(ctx context.Context, tx pgx.Tx, id int, action string) (*Container, error) {
	c, err := scanContainer(tx.QueryRow(ctx, "SELECT "+containerColumns+" FROM containers WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("container %d", id)
		}
		return nil, fmt.Errorf("failed to lock container %d: %w", id, err)
	}
	if c.Status == ContainerValidated {
		return nil, invalidStatef("cannot %s: container %s is already validated", action, c.Ref)
	}
	return c, nil
}

// mutate runs fn on a locked, editable container and returns the reloaded container.
func (s *containerService) mutate(ctx context.Context, id int, action string, fn func(tx pgx.Tx, c *Container) error) (*Container, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockEditable(ctx, tx, id, action); err != nil {
		return nil, err
	}
	before, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(tx, before); err != nil {
		return nil, err
	}
	after, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit container change: %w", err)
	}
	audit(ctx, s.audit, "container."+strings.ReplaceAll(action, " ", "_"), "container", id, "", before, after)
	return after, nil
}

func (s *containerService) SetActualArrival(ctx context.Context, id int, date time.Time) (*Container, error) {
	if date.IsZero() {
		return nil, validationf("actual arrival date is required")
	}
	return s.mutate(ctx, id, "set arrival", func(tx pgx.Tx, _ *Container) error {
		if _, err := tx.Exec(ctx, "UPDATE containers SET actual_arrival = $1 WHERE id = $2", date, id); err != nil {
			return fmt.Errorf("failed to set actual arrival: %w", err)
		}
		return nil
	})
}

func (s *containerService) AddManifestLine(ctx context.Context, id, productID int, plannedQty decimal.Decimal) (*Container, error) {
	if !plannedQty.IsPositive() {
		return nil, validationf("planned quantity must be positive, got %s", plannedQty)
	}
	return s.mutate(ctx, id, "edit manifest", func(tx pgx.Tx, c *Container) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO container_manifest_lines (container_id, product_id, planned_qty)
			VALUES ($1, $2, $3)
			ON CONFLICT (container_id, product_id) DO UPDATE SET planned_qty = EXCLUDED.planned_qty
		`, id, productID, plannedQty); err != nil {
			return wrapPgError(err, "add manifest line")
		}
		if c.Status == ContainerPlanned {
			if _, err := tx.Exec(ctx, "UPDATE containers SET status = $1 WHERE id = $2", string(ContainerInProgress), id); err != nil {
				return fmt.Errorf("failed to start container %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *containerService) RemoveManifestLine(ctx context.Context, id, productID int) (*Container, error) {
	return s.mutate(ctx, id, "edit manifest", func(tx pgx.Tx, _ *Container) error {
		tag, err := tx.Exec(ctx, "DELETE FROM container_manifest_lines WHERE container_id = $1 AND product_id = $2", id, productID)
		if err != nil {
			return fmt.Errorf("failed to remove manifest line: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("no manifest line for product %d on container %d", productID, id)
		}
		return nil
	})
}

func (s *containerService) AddReceivedLine(ctx context.Context, id int, in ReceivedLineInput) (*Container, error) {
	if in.ReceivedQty.IsNegative() {
		return nil, validationf("received quantity cannot be negative, got %s", in.ReceivedQty)
	}
	if in.BreakageQty.IsNegative() {
		return nil, validationf("breakage quantity cannot be negative, got %s", in.BreakageQty)
	}
	return s.mutate(ctx, id, "edit received lines", func(tx pgx.Tx, _ *Container) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO container_received_lines (container_id, product_id, received_qty, breakage_qty, comment)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (container_id, product_id) DO UPDATE
			SET received_qty = EXCLUDED.received_qty, breakage_qty = EXCLUDED.breakage_qty, comment = EXCLUDED.comment
		`, id, in.ProductID, in.ReceivedQty, in.BreakageQty, in.Comment); err != nil {
			return wrapPgError(err, "add received line")
		}
		return nil
	})
}

func (s *containerService) RemoveReceivedLine(ctx context.Context, id, productID int) (*Container, error) {
	return s.mutate(ctx, id, "edit received lines", func(tx pgx.Tx, _ *Container) error {
		tag, err := tx.Exec(ctx, "DELETE FROM container_received_lines WHERE container_id = $1 AND product_id = $2", id, productID)
		if err != nil {
			return fmt.Errorf("failed to remove received line: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return notFoundf("no received line for product %d on container %d", productID, id)
		}
		return nil
	})
}

func (s *containerService) Reconcile(ctx context.Context, id int) ([]Discrepancy, error) {
	if _, err := s.load(ctx, s.pool, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name,
		       COALESCE(m.planned_qty, 0), COALESCE(r.received_qty, 0), COALESCE(r.breakage_qty, 0)
		FROM (SELECT product_id, planned_qty FROM container_manifest_lines WHERE container_id = $1) m
		FULL OUTER JOIN (
			SELECT product_id, received_qty, breakage_qty FROM container_received_lines WHERE container_id = $1
		) r ON r.product_id = m.product_id
		JOIN products p ON p.id = COALESCE(m.product_id, r.product_id)
		ORDER BY p.name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliation: %w", err)
	}
	defer rows.Close()

	report := []Discrepancy{}
	for rows.Next() {
		var d Discrepancy
		if err := rows.Scan(&d.ProductID, &d.ProductName, &d.PlannedQty, &d.ReceivedQty, &d.BreakageQty); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation row: %w", err)
		}
		d.Difference = d.ReceivedQty.Sub(d.PlannedQty)
		d.Kind = classifyDiscrepancy(d.PlannedQty, d.ReceivedQty)
		report = append(report, d)
	}
	return report, rows.Err()
}

func (s *containerService) Validate(ctx context.Context, id int) (*Container, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := lockEditable(ctx, tx, id, "validate")
	if err != nil {
		return nil, err
	}
	before, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	lines, err := receivedLines(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, validationf("container %s has no received lines", c.Ref)
	}

	reference := "CONT-" + c.Ref
	var touched []int
	for _, l := range lines {
		if !l.ReceivedQty.IsPositive() {
			continue
		}
		if _, err := s.stock.PostTx(ctx, tx, MovementInput{
			ProductID: l.ProductID,
			Quantity:  l.ReceivedQty,
			Type:      MovementReception,
			Reference: reference,
			Reason:    "container reception",
		}); err != nil {
			return nil, fmt.Errorf("container %s: reception of %s failed: %w", c.Ref, l.ProductName, err)
		}
		touched = append(touched, l.ProductID)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE containers SET status = $1, validated_at = NOW() WHERE id = $2",
		string(ContainerValidated), id,
	); err != nil {
		return nil, fmt.Errorf("failed to validate container %d: %w", id, err)
	}

	after, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit container validation: %w", err)
	}

	s.stock.InvalidateCache(ctx, touched...)
	audit(ctx, s.audit, "container.validate", "container", id, "", before, after)
	return after, nil
}
