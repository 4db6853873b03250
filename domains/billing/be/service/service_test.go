package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

type fakeRepository struct {
	invoices   map[uuid.UUID]persistence.Invoice
	payments   map[uuid.UUID][]persistence.Payment
	leases     map[uuid.UUID]persistence.Lease
	properties map[uuid.UUID]persistence.Property
	now        time.Time
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		invoices:   map[uuid.UUID]persistence.Invoice{},
		payments:   map[uuid.UUID][]persistence.Payment{},
		leases:     map[uuid.UUID]persistence.Lease{},
		properties: map[uuid.UUID]persistence.Property{},
		now:        time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeRepository) CreateInvoice(_ context.Context, params persistence.CreateInvoiceParams) (persistence.Invoice, error) {
	if _, ok := f.leases[params.LeaseID]; !ok {
		return persistence.Invoice{}, persistence.ErrLeaseNotFound
	}
	invoice := persistence.Invoice{
		InvoiceID:   params.InvoiceID,
		LeaseID:     params.LeaseID,
		Description: params.Description,
		AmountDue:   params.AmountDue,
		DueDate:     params.DueDate,
		CreatedAt:   f.now,
	}
	f.invoices[invoice.InvoiceID] = invoice
	return invoice, nil
}

func (f *fakeRepository) GetInvoiceBalance(_ context.Context, id uuid.UUID) (persistence.InvoiceBalance, error) {
	invoice, ok := f.invoices[id]
	if !ok {
		return persistence.InvoiceBalance{}, persistence.ErrInvoiceNotFound
	}
	paid := 0.0
	for _, payment := range f.payments[id] {
		paid += payment.Amount
	}
	return persistence.InvoiceBalance{Invoice: invoice, Paid: paid}, nil
}

func (f *fakeRepository) ListInvoicesByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.InvoiceBalance, error) {
	balances := []persistence.InvoiceBalance{}
	for id, invoice := range f.invoices {
		if invoice.LeaseID != leaseID {
			continue
		}
		balance, err := f.GetInvoiceBalance(ctx, id)
		if err != nil {
			return nil, err
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

func (f *fakeRepository) RecordPayment(_ context.Context, params persistence.RecordPaymentParams) (persistence.Payment, error) {
	if _, ok := f.invoices[params.InvoiceID]; !ok {
		return persistence.Payment{}, persistence.ErrInvoiceNotFound
	}
	payment := persistence.Payment{
		PaymentID: params.PaymentID,
		InvoiceID: params.InvoiceID,
		Amount:    params.Amount,
		Method:    params.Method,
		Note:      params.Note,
		PaidAt:    params.PaidAt,
	}
	f.payments[params.InvoiceID] = append(f.payments[params.InvoiceID], payment)
	return payment, nil
}

func (f *fakeRepository) ListPaymentsByInvoice(_ context.Context, invoiceID uuid.UUID) ([]persistence.Payment, error) {
	return f.payments[invoiceID], nil
}

func (f *fakeRepository) GetLease(_ context.Context, id uuid.UUID) (persistence.Lease, error) {
	lease, ok := f.leases[id]
	if !ok {
		return persistence.Lease{}, persistence.ErrLeaseNotFound
	}
	return lease, nil
}

func (f *fakeRepository) GetProperty(_ context.Context, id uuid.UUID) (persistence.Property, error) {
	property, ok := f.properties[id]
	if !ok {
		return persistence.Property{}, persistence.ErrPropertyNotFound
	}
	return property, nil
}

const managerID = "manager-1"

func seedLease(f *fakeRepository) persistence.Lease {
	property := persistence.Property{PropertyID: uuid.New(), ManagerID: managerID}
	f.properties[property.PropertyID] = property
	lease := persistence.Lease{LeaseID: uuid.New(), PropertyID: property.PropertyID}
	f.leases[lease.LeaseID] = lease
	return lease
}

func newService(repo *fakeRepository) *service {
	return &service{repo: repo, now: func() time.Time { return repo.now }}
}

func TestCreateInvoiceValidatesInput(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.CreateInvoice(context.Background(), managerID, lease.LeaseID, CreateInvoiceInput{
		Description: "",
		AmountDue:   -10,
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "description")
	require.Contains(t, validationErr.Fields, "amountDue")
	require.Contains(t, validationErr.Fields, "dueDate")
}

func TestCreateInvoiceEnforcesOwnership(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.CreateInvoice(context.Background(), "intruder", lease.LeaseID, CreateInvoiceInput{
		Description: "June rent",
		AmountDue:   1500,
		DueDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestInvoiceStatusDerivation(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	invoice, err := svc.CreateInvoice(context.Background(), managerID, lease.LeaseID, CreateInvoiceInput{
		Description: "June rent",
		AmountDue:   1500,
		DueDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, invoice.Status)
	require.Equal(t, 1500.0, invoice.Balance)

	_, err = svc.RecordPayment(context.Background(), managerID, invoice.InvoiceID, RecordPaymentInput{
		Amount: 500,
		Method: "ACH",
	})
	require.NoError(t, err)

	view, err := svc.GetInvoice(context.Background(), managerID, invoice.InvoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, view.Status)
	require.Equal(t, 1000.0, view.Balance)

	_, err = svc.RecordPayment(context.Background(), managerID, invoice.InvoiceID, RecordPaymentInput{
		Amount: 1000,
		Method: "ACH",
	})
	require.NoError(t, err)

	view, err = svc.GetInvoice(context.Background(), managerID, invoice.InvoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, view.Status)
	require.Equal(t, 0.0, view.Balance)
}

func TestRecordPaymentRejectsOverPayment(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	invoice, err := svc.CreateInvoice(context.Background(), managerID, lease.LeaseID, CreateInvoiceInput{
		Description: "June rent",
		AmountDue:   1500,
		DueDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), managerID, invoice.InvoiceID, RecordPaymentInput{
		Amount: 2000,
		Method: "ACH",
	})
	require.ErrorIs(t, err, ErrOverPayment)

	_, err = svc.RecordPayment(context.Background(), managerID, invoice.InvoiceID, RecordPaymentInput{
		Amount: -5,
		Method: "ACH",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "amount")
}

func TestListInvoicesScopedToManager(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	lease := seedLease(repo)
	svc := newService(repo)

	_, err := svc.CreateInvoice(context.Background(), managerID, lease.LeaseID, CreateInvoiceInput{
		Description: "June rent",
		AmountDue:   1500,
		DueDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	views, err := svc.ListInvoices(context.Background(), managerID, lease.LeaseID)
	require.NoError(t, err)
	require.Len(t, views, 1)

	_, err = svc.ListInvoices(context.Background(), "intruder", lease.LeaseID)
	require.ErrorIs(t, err, ErrForbidden)
}
