package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

type meterKey struct {
	unitID    uuid.UUID
	meterType string
}

type fakeRepository struct {
	readings   map[meterKey][]persistence.MeterReading
	units      map[uuid.UUID]persistence.Unit
	properties map[uuid.UUID]persistence.Property
	now        time.Time
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		readings:   map[meterKey][]persistence.MeterReading{},
		units:      map[uuid.UUID]persistence.Unit{},
		properties: map[uuid.UUID]persistence.Property{},
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepository) CreateReading(_ context.Context, params persistence.CreateReadingParams) (persistence.MeterReading, error) {
	if _, ok := f.units[params.UnitID]; !ok {
		return persistence.MeterReading{}, persistence.ErrUnitNotFound
	}

	key := meterKey{unitID: params.UnitID, meterType: params.MeterType}
	existing := f.readings[key]
	if len(existing) > 0 {
		latest := existing[len(existing)-1]
		if params.Reading < latest.Reading {
			return persistence.MeterReading{}, persistence.ErrReadingNotMonotonic
		}
	}

	reading := persistence.MeterReading{
		ReadingID:  params.ReadingID,
		UnitID:     params.UnitID,
		MeterType:  params.MeterType,
		Reading:    params.Reading,
		ReadAt:     params.ReadAt,
		RecordedBy: params.RecordedBy,
		CreatedAt:  f.now,
	}
	f.readings[key] = append(f.readings[key], reading)
	return reading, nil
}

func (f *fakeRepository) ListReadings(_ context.Context, params persistence.ListReadingsParams) ([]persistence.MeterReading, error) {
	results := []persistence.MeterReading{}
	for key, readings := range f.readings {
		if key.unitID != params.UnitID {
			continue
		}
		if params.MeterType != nil && key.meterType != *params.MeterType {
			continue
		}
		for _, reading := range readings {
			if params.Since != nil && reading.ReadAt.Before(*params.Since) {
				continue
			}
			results = append(results, reading)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ReadAt.Before(results[j].ReadAt) })
	return results, nil
}

func (f *fakeRepository) GetUnit(_ context.Context, id uuid.UUID) (persistence.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return persistence.Unit{}, persistence.ErrUnitNotFound
	}
	return unit, nil
}

func (f *fakeRepository) GetProperty(_ context.Context, id uuid.UUID) (persistence.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return persistence.Property{}, persistence.ErrPropertyNotFound
	}
	return property, nil
}

const managerID = "manager-1"

func seedUnit(f *fakeRepository) persistence.Unit {
	property := persistence.Property{PropertyID: uuid.New(), ManagerID: managerID}
	f.properties[property.PropertyID] = property
	unit := persistence.Unit{UnitID: uuid.New(), PropertyID: property.PropertyID, UnitNumber: "2A"}
	f.units[unit.UnitID] = unit
	return unit
}

func newService(repo *fakeRepository) *service {
	return &service{repo: repo, now: func() time.Time { return repo.now }}
}

func TestRecordRejectsUnknownMeterType(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	unit := seedUnit(repo)
	svc := newService(repo)

	_, err := svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: "STEAM",
		Reading:   100,
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "meterType")
}

func TestRecordEnforcesMonotonicReadings(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	unit := seedUnit(repo)
	svc := newService(repo)

	_, err := svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: MeterElectric,
		Reading:   1200,
	})
	require.NoError(t, err)

	_, err = svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: MeterElectric,
		Reading:   1100,
	})
	require.ErrorIs(t, err, ErrNotMonotonic)

	// an equal value is a legal re-read
	_, err = svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: MeterElectric,
		Reading:   1200,
	})
	require.NoError(t, err)
}

func TestRecordMonotonicityIsPerMeterType(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	unit := seedUnit(repo)
	svc := newService(repo)

	_, err := svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: MeterElectric,
		Reading:   1200,
	})
	require.NoError(t, err)

	// the water meter has its own counter
	_, err = svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: MeterWater,
		Reading:   40,
	})
	require.NoError(t, err)
}

func TestRecordEnforcesOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	unit := seedUnit(repo)
	svc := newService(repo)

	_, err := svc.Record(context.Background(), "intruder", unit.UnitID, RecordInput{
		MeterType: MeterElectric,
		Reading:   1200,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListFiltersByTypeAndSince(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	unit := seedUnit(repo)
	svc := newService(repo)

	base := repo.now
	for i, reading := range []float64{100, 110, 120} {
		_, err := svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
			MeterType: MeterElectric,
			Reading:   reading,
			ReadAt:    base.Add(time.Duration(i) * 24 * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := svc.Record(context.Background(), managerID, unit.UnitID, RecordInput{
		MeterType: MeterGas,
		Reading:   5,
		ReadAt:    base,
	})
	require.NoError(t, err)

	electric := MeterElectric
	since := base.Add(24 * time.Hour)
	readings, err := svc.List(context.Background(), managerID, unit.UnitID, ListInput{
		MeterType: &electric,
		Since:     &since,
	})
	require.NoError(t, err)
	require.Len(t, readings, 2)
	require.Equal(t, 110.0, readings[0].Reading)
	require.Equal(t, 120.0, readings[1].Reading)
}
