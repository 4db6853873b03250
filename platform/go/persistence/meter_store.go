package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const MeterReadingsTable = "meter_readings"

var (
	// ErrReadingNotFound indicates a missing meter reading record.
	ErrReadingNotFound = errors.New("meter reading not found")
	// ErrReadingNotMonotonic indicates a reading below the latest recorded value.
	ErrReadingNotMonotonic = errors.New("meter reading below previous value")
)

// MeterReading represents a row in the meter_readings table.
type MeterReading struct {
	ReadingID  uuid.UUID `db:"reading_id" json:"readingId"`
	UnitID     uuid.UUID `db:"unit_id" json:"unitId"`
	MeterType  string    `db:"meter_type" json:"meterType"`
	Reading    float64   `db:"reading" json:"reading"`
	ReadAt     time.Time `db:"read_at" json:"readAt"`
	RecordedBy string    `db:"recorded_by" json:"recordedBy"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

const meterReadingColumns = "reading_id, unit_id, meter_type, reading, read_at, recorded_by, created_at"

// MeterStore exposes persistence helpers for the meter_readings table.
type MeterStore struct {
	pool *pgxpool.Pool
}

// NewMeterStore returns a store instance backed by the shared pool.
func NewMeterStore(pool *pgxpool.Pool) (*MeterStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &MeterStore{pool: pool}, nil
}

// CreateReadingParams captures the fields required to insert a meter reading.
type CreateReadingParams struct {
	ReadingID  uuid.UUID
	UnitID     uuid.UUID
	MeterType  string
	Reading    float64
	ReadAt     time.Time
	RecordedBy string
}

// CreateReading inserts a reading after checking, inside a transaction, that
// the value does not regress against the latest reading for the same meter.
func (s *MeterStore) CreateReading(ctx context.Context, params CreateReadingParams) (MeterReading, error) {
	if params.ReadingID == uuid.Nil {
		return MeterReading{}, errors.New("reading id is required")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return MeterReading{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var latest *float64
	err = tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT reading FROM %s
        WHERE unit_id = $1 AND meter_type = $2
        ORDER BY read_at DESC
        LIMIT 1
        FOR UPDATE
    `, MeterReadingsTable), params.UnitID, params.MeterType).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return MeterReading{}, fmt.Errorf("latest reading: %w", err)
	}
	if latest != nil && params.Reading < *latest {
		return MeterReading{}, ErrReadingNotMonotonic
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (reading_id, unit_id, meter_type, reading, read_at, recorded_by)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, MeterReadingsTable, meterReadingColumns),
		params.ReadingID, params.UnitID, params.MeterType, params.Reading, params.ReadAt, params.RecordedBy,
	)

	reading, err := scanMeterReading(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return MeterReading{}, ErrUnitNotFound
		}
		return MeterReading{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return MeterReading{}, fmt.Errorf("commit reading: %w", err)
	}
	return reading, nil
}

// ListReadingsParams filters the reading listing.
type ListReadingsParams struct {
	UnitID    uuid.UUID
	MeterType *string
	Since     *time.Time
}

// ListReadings returns readings for a unit ordered by read time.
func (s *MeterStore) ListReadings(ctx context.Context, params ListReadingsParams) ([]MeterReading, error) {
	where := "unit_id = $1"
	args := []any{params.UnitID}
	if params.MeterType != nil {
		args = append(args, *params.MeterType)
		where += fmt.Sprintf(" AND meter_type = $%d", len(args))
	}
	if params.Since != nil {
		args = append(args, *params.Since)
		where += fmt.Sprintf(" AND read_at >= $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE %s ORDER BY read_at
    `, meterReadingColumns, MeterReadingsTable, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	readings := make([]MeterReading, 0)
	for rows.Next() {
		reading, scanErr := scanMeterReading(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan reading: %w", scanErr)
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}

func scanMeterReading(row pgx.Row) (MeterReading, error) {
	var r MeterReading
	if err := row.Scan(&r.ReadingID, &r.UnitID, &r.MeterType, &r.Reading, &r.ReadAt, &r.RecordedBy, &r.CreatedAt); err != nil {
		return MeterReading{}, err
	}
	return r, nil
}
