package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	PricingPlansTable   = "pricing_plans"
	NavbarItemsTable    = "navbar_items"
	PolicySectionsTable = "policy_sections"
)

var (
	// ErrContentNotFound indicates a missing content record.
	ErrContentNotFound = errors.New("content not found")
	// ErrContentConflict indicates a duplicate plan name or policy slug.
	ErrContentConflict = errors.New("content conflict")
)

// PricingPlan represents a row in the pricing_plans table.
type PricingPlan struct {
	PlanID       uuid.UUID       `db:"plan_id" json:"planId"`
	Name         string          `db:"name" json:"name"`
	PriceMonthly float64         `db:"price_monthly" json:"priceMonthly"`
	Features     json.RawMessage `db:"features" json:"features"`
	SortOrder    int             `db:"sort_order" json:"sortOrder"`
	Active       bool            `db:"active" json:"active"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// NavbarItem represents a row in the navbar_items table.
type NavbarItem struct {
	ItemID    uuid.UUID `db:"item_id" json:"itemId"`
	Label     string    `db:"label" json:"label"`
	Href      string    `db:"href" json:"href"`
	SortOrder int       `db:"sort_order" json:"sortOrder"`
	Visible   bool      `db:"visible" json:"visible"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PolicySection represents a row in the policy_sections table.
type PolicySection struct {
	SectionID uuid.UUID `db:"section_id" json:"sectionId"`
	Slug      string    `db:"slug" json:"slug"`
	Title     string    `db:"title" json:"title"`
	Body      string    `db:"body" json:"body"`
	SortOrder int       `db:"sort_order" json:"sortOrder"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ContentStore exposes persistence helpers for site content tables.
type ContentStore struct {
	pool *pgxpool.Pool
}

// NewContentStore returns a store instance backed by the shared pool.
func NewContentStore(pool *pgxpool.Pool) (*ContentStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &ContentStore{pool: pool}, nil
}

// UpsertPricingPlanParams captures a full pricing plan payload.
type UpsertPricingPlanParams struct {
	PlanID       uuid.UUID
	Name         string
	PriceMonthly float64
	Features     json.RawMessage
	SortOrder    int
	Active       bool
}

// UpsertPricingPlan inserts or replaces a pricing plan keyed by identifier.
func (s *ContentStore) UpsertPricingPlan(ctx context.Context, params UpsertPricingPlanParams) (PricingPlan, error) {
	if params.PlanID == uuid.Nil {
		return PricingPlan{}, errors.New("plan id is required")
	}
	features := params.Features
	if len(features) == 0 {
		features = json.RawMessage("[]")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (plan_id, name, price_monthly, features, sort_order, active)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (plan_id) DO UPDATE SET
            name = EXCLUDED.name, price_monthly = EXCLUDED.price_monthly,
            features = EXCLUDED.features, sort_order = EXCLUDED.sort_order,
            active = EXCLUDED.active, updated_at = NOW()
        RETURNING plan_id, name, price_monthly, features, sort_order, active, created_at, updated_at
    `, PricingPlansTable),
		params.PlanID, params.Name, params.PriceMonthly, features, params.SortOrder, params.Active,
	)

	var p PricingPlan
	err := row.Scan(&p.PlanID, &p.Name, &p.PriceMonthly, &p.Features, &p.SortOrder, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return PricingPlan{}, ErrContentConflict
		}
		return PricingPlan{}, err
	}
	return p, nil
}

// ListPricingPlans returns plans in display order. When activeOnly is set,
// inactive plans are filtered out.
func (s *ContentStore) ListPricingPlans(ctx context.Context, activeOnly bool) ([]PricingPlan, error) {
	where := "1=1"
	if activeOnly {
		where = "active = TRUE"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT plan_id, name, price_monthly, features, sort_order, active, created_at, updated_at
        FROM %s WHERE %s ORDER BY sort_order, name
    `, PricingPlansTable, where))
	if err != nil {
		return nil, fmt.Errorf("list pricing plans: %w", err)
	}
	defer rows.Close()

	plans := make([]PricingPlan, 0)
	for rows.Next() {
		var p PricingPlan
		if err := rows.Scan(&p.PlanID, &p.Name, &p.PriceMonthly, &p.Features, &p.SortOrder, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pricing plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DeletePricingPlan removes a plan by identifier.
func (s *ContentStore) DeletePricingPlan(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE plan_id = $1`, PricingPlansTable), id)
	if err != nil {
		return fmt.Errorf("delete pricing plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContentNotFound
	}
	return nil
}

// UpsertNavbarItemParams captures a full navbar item payload.
type UpsertNavbarItemParams struct {
	ItemID    uuid.UUID
	Label     string
	Href      string
	SortOrder int
	Visible   bool
}

// UpsertNavbarItem inserts or replaces a navbar item keyed by identifier.
func (s *ContentStore) UpsertNavbarItem(ctx context.Context, params UpsertNavbarItemParams) (NavbarItem, error) {
	if params.ItemID == uuid.Nil {
		return NavbarItem{}, errors.New("item id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (item_id, label, href, sort_order, visible)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (item_id) DO UPDATE SET
            label = EXCLUDED.label, href = EXCLUDED.href,
            sort_order = EXCLUDED.sort_order, visible = EXCLUDED.visible, updated_at = NOW()
        RETURNING item_id, label, href, sort_order, visible, created_at, updated_at
    `, NavbarItemsTable),
		params.ItemID, params.Label, params.Href, params.SortOrder, params.Visible,
	)

	var n NavbarItem
	if err := row.Scan(&n.ItemID, &n.Label, &n.Href, &n.SortOrder, &n.Visible, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return NavbarItem{}, err
	}
	return n, nil
}

// ListNavbarItems returns navbar items in display order. When visibleOnly is
// set, hidden items are filtered out.
func (s *ContentStore) ListNavbarItems(ctx context.Context, visibleOnly bool) ([]NavbarItem, error) {
	where := "1=1"
	if visibleOnly {
		where = "visible = TRUE"
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT item_id, label, href, sort_order, visible, created_at, updated_at
        FROM %s WHERE %s ORDER BY sort_order, label
    `, NavbarItemsTable, where))
	if err != nil {
		return nil, fmt.Errorf("list navbar items: %w", err)
	}
	defer rows.Close()

	items := make([]NavbarItem, 0)
	for rows.Next() {
		var n NavbarItem
		if err := rows.Scan(&n.ItemID, &n.Label, &n.Href, &n.SortOrder, &n.Visible, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan navbar item: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// DeleteNavbarItem removes a navbar item by identifier.
func (s *ContentStore) DeleteNavbarItem(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE item_id = $1`, NavbarItemsTable), id)
	if err != nil {
		return fmt.Errorf("delete navbar item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContentNotFound
	}
	return nil
}

// UpsertPolicySectionParams captures a full policy section payload.
type UpsertPolicySectionParams struct {
	SectionID uuid.UUID
	Slug      string
	Title     string
	Body      string
	SortOrder int
}

// UpsertPolicySection inserts or replaces a policy section keyed by identifier.
func (s *ContentStore) UpsertPolicySection(ctx context.Context, params UpsertPolicySectionParams) (PolicySection, error) {
	if params.SectionID == uuid.Nil {
		return PolicySection{}, errors.New("section id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (section_id, slug, title, body, sort_order)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (section_id) DO UPDATE SET
            slug = EXCLUDED.slug, title = EXCLUDED.title,
            body = EXCLUDED.body, sort_order = EXCLUDED.sort_order, updated_at = NOW()
        RETURNING section_id, slug, title, body, sort_order, created_at, updated_at
    `, PolicySectionsTable),
		params.SectionID, params.Slug, params.Title, params.Body, params.SortOrder,
	)

	var p PolicySection
	err := row.Scan(&p.SectionID, &p.Slug, &p.Title, &p.Body, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return PolicySection{}, ErrContentConflict
		}
		return PolicySection{}, err
	}
	return p, nil
}

// GetPolicySection returns a policy section by slug.
func (s *ContentStore) GetPolicySection(ctx context.Context, slug string) (PolicySection, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT section_id, slug, title, body, sort_order, created_at, updated_at
        FROM %s WHERE slug = $1
    `, PolicySectionsTable), slug)

	var p PolicySection
	err := row.Scan(&p.SectionID, &p.Slug, &p.Title, &p.Body, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PolicySection{}, ErrContentNotFound
		}
		return PolicySection{}, err
	}
	return p, nil
}

// ListPolicySections returns policy sections in display order.
func (s *ContentStore) ListPolicySections(ctx context.Context) ([]PolicySection, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT section_id, slug, title, body, sort_order, created_at, updated_at
        FROM %s ORDER BY sort_order, slug
    `, PolicySectionsTable))
	if err != nil {
		return nil, fmt.Errorf("list policy sections: %w", err)
	}
	defer rows.Close()

	sections := make([]PolicySection, 0)
	for rows.Next() {
		var p PolicySection
		if err := rows.Scan(&p.SectionID, &p.Slug, &p.Title, &p.Body, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan policy section: %w", err)
		}
		sections = append(sections, p)
	}
	return sections, rows.Err()
}

// DeletePolicySection removes a policy section by identifier.
func (s *ContentStore) DeletePolicySection(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE section_id = $1`, PolicySectionsTable), id)
	if err != nil {
		return fmt.Errorf("delete policy section: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrContentNotFound
	}
	return nil
}
