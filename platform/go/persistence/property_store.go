package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	PropertiesTable = "properties"
	UnitsTable      = "units"
)

var (
	// ErrPropertyNotFound indicates a missing property record.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrUnitNotFound indicates a missing unit record.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrUnitConflict indicates a duplicate unit number within a property.
	ErrUnitConflict = errors.New("unit conflict")
)

// Property represents a row in the properties table. ManagerID is the auth
// subject of the landlord of record; the landlord signing path authorizes
// against it.
type Property struct {
	PropertyID uuid.UUID `db:"property_id" json:"propertyId"`
	ManagerID  string    `db:"manager_id" json:"managerId"`
	Name       string    `db:"name" json:"name"`
	Address    string    `db:"address" json:"address"`
	City       string    `db:"city" json:"city"`
	State      string    `db:"state" json:"state"`
	Zip        string    `db:"zip" json:"zip"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Unit represents a tenant-addressable space inside a property.
type Unit struct {
	UnitID     uuid.UUID `db:"unit_id" json:"unitId"`
	PropertyID uuid.UUID `db:"property_id" json:"propertyId"`
	UnitNumber string    `db:"unit_number" json:"unitNumber"`
	Bedrooms   int       `db:"bedrooms" json:"bedrooms"`
	Bathrooms  float64   `db:"bathrooms" json:"bathrooms"`
	Sqft       int       `db:"sqft" json:"sqft"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

const propertyColumns = "property_id, manager_id, name, address, city, state, zip, created_at, updated_at"
const unitColumns = "unit_id, property_id, unit_number, bedrooms, bathrooms, sqft, created_at, updated_at"

// PropertyStore exposes persistence helpers for properties and units.
type PropertyStore struct {
	pool *pgxpool.Pool
}

// NewPropertyStore returns a store instance backed by the shared pool.
func NewPropertyStore(pool *pgxpool.Pool) (*PropertyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &PropertyStore{pool: pool}, nil
}

// CreatePropertyParams captures the fields required to insert a property.
type CreatePropertyParams struct {
	PropertyID uuid.UUID
	ManagerID  string
	Name       string
	Address    string
	City       string
	State      string
	Zip        string
}

// CreateProperty inserts a new property and returns the persisted record.
func (s *PropertyStore) CreateProperty(ctx context.Context, params CreatePropertyParams) (Property, error) {
	if params.PropertyID == uuid.Nil {
		return Property{}, errors.New("property id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (property_id, manager_id, name, address, city, state, zip)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s
    `, PropertiesTable, propertyColumns),
		params.PropertyID, strings.TrimSpace(params.ManagerID), strings.TrimSpace(params.Name),
		params.Address, params.City, params.State, params.Zip,
	)
	return scanProperty(row)
}

// GetProperty returns a single property by identifier.
func (s *PropertyStore) GetProperty(ctx context.Context, id uuid.UUID) (Property, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE property_id = $1
    `, propertyColumns, PropertiesTable), id)

	property, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrPropertyNotFound
		}
		return Property{}, err
	}
	return property, nil
}

// ListPropertiesByManager returns the properties managed by the given subject.
func (s *PropertyStore) ListPropertiesByManager(ctx context.Context, managerID string) ([]Property, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE manager_id = $1 ORDER BY created_at DESC
    `, propertyColumns, PropertiesTable), managerID)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	properties := make([]Property, 0)
	for rows.Next() {
		property, scanErr := scanProperty(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan property: %w", scanErr)
		}
		properties = append(properties, property)
	}
	return properties, rows.Err()
}

// UpdatePropertyParams represents manager-editable property fields.
type UpdatePropertyParams struct {
	Name    *string
	Address *string
	City    *string
	State   *string
	Zip     *string
}

// UpdateProperty applies the provided fields and returns the updated record.
func (s *PropertyStore) UpdateProperty(ctx context.Context, id uuid.UUID, params UpdatePropertyParams) (Property, error) {
	setParts := []string{}
	var args []any

	appendField := func(column string, value *string) {
		if value != nil {
			args = append(args, strings.TrimSpace(*value))
			setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}
	appendField("name", params.Name)
	appendField("address", params.Address)
	appendField("city", params.City)
	appendField("state", params.State)
	appendField("zip", params.Zip)

	if len(setParts) == 0 {
		return Property{}, errors.New("no fields to update")
	}

	args = append(args, id)
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET %s, updated_at = NOW()
        WHERE property_id = $%d
        RETURNING %s
    `, PropertiesTable, strings.Join(setParts, ", "), len(args), propertyColumns), args...)

	property, err := scanProperty(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Property{}, ErrPropertyNotFound
		}
		return Property{}, err
	}
	return property, nil
}

// DeleteProperty removes a property and, through FK cascade, its units.
func (s *PropertyStore) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE property_id = $1`, PropertiesTable), id)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPropertyNotFound
	}
	return nil
}

// CreateUnitParams captures the fields required to insert a unit.
type CreateUnitParams struct {
	UnitID     uuid.UUID
	PropertyID uuid.UUID
	UnitNumber string
	Bedrooms   int
	Bathrooms  float64
	Sqft       int
}

// CreateUnit inserts a new unit under a property.
func (s *PropertyStore) CreateUnit(ctx context.Context, params CreateUnitParams) (Unit, error) {
	if params.UnitID == uuid.Nil {
		return Unit{}, errors.New("unit id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (unit_id, property_id, unit_number, bedrooms, bathrooms, sqft)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, UnitsTable, unitColumns),
		params.UnitID, params.PropertyID, strings.TrimSpace(params.UnitNumber),
		params.Bedrooms, params.Bathrooms, params.Sqft,
	)

	unit, err := scanUnit(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Unit{}, ErrUnitConflict
		}
		if isForeignKeyViolation(err) {
			return Unit{}, ErrPropertyNotFound
		}
		return Unit{}, err
	}
	return unit, nil
}

// GetUnit returns a single unit by identifier.
func (s *PropertyStore) GetUnit(ctx context.Context, id uuid.UUID) (Unit, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE unit_id = $1
    `, unitColumns, UnitsTable), id)

	unit, err := scanUnit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, ErrUnitNotFound
		}
		return Unit{}, err
	}
	return unit, nil
}

// ListUnitsByProperty returns the units under a property ordered by number.
func (s *PropertyStore) ListUnitsByProperty(ctx context.Context, propertyID uuid.UUID) ([]Unit, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE property_id = $1 ORDER BY unit_number
    `, unitColumns, UnitsTable), propertyID)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	units := make([]Unit, 0)
	for rows.Next() {
		unit, scanErr := scanUnit(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan unit: %w", scanErr)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func scanProperty(row pgx.Row) (Property, error) {
	var p Property
	if err := row.Scan(&p.PropertyID, &p.ManagerID, &p.Name, &p.Address, &p.City, &p.State, &p.Zip, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Property{}, err
	}
	return p, nil
}

func scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	if err := row.Scan(&u.UnitID, &u.PropertyID, &u.UnitNumber, &u.Bedrooms, &u.Bathrooms, &u.Sqft, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return Unit{}, err
	}
	return u, nil
}
