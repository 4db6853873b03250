package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the billing service needs.
type Repository interface {
	CreateInvoice(ctx context.Context, params persistence.CreateInvoiceParams) (persistence.Invoice, error)
	GetInvoiceBalance(ctx context.Context, id uuid.UUID) (persistence.InvoiceBalance, error)
	ListInvoicesByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.InvoiceBalance, error)
	RecordPayment(ctx context.Context, params persistence.RecordPaymentParams) (persistence.Payment, error)
	ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]persistence.Payment, error)

	GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error)
	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
}

type postgresRepository struct {
	billing    *persistence.BillingStore
	leases     *persistence.LeaseStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(billing *persistence.BillingStore, leases *persistence.LeaseStore, properties *persistence.PropertyStore) Repository {
	if billing == nil {
		panic("billing store is required")
	}
	if leases == nil {
		panic("lease store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &postgresRepository{billing: billing, leases: leases, properties: properties}
}

func (r *postgresRepository) CreateInvoice(ctx context.Context, params persistence.CreateInvoiceParams) (persistence.Invoice, error) {
	return r.billing.CreateInvoice(ctx, params)
}

func (r *postgresRepository) GetInvoiceBalance(ctx context.Context, id uuid.UUID) (persistence.InvoiceBalance, error) {
	return r.billing.GetInvoiceBalance(ctx, id)
}

func (r *postgresRepository) ListInvoicesByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.InvoiceBalance, error) {
	return r.billing.ListInvoicesByLease(ctx, leaseID)
}

func (r *postgresRepository) RecordPayment(ctx context.Context, params persistence.RecordPaymentParams) (persistence.Payment, error) {
	return r.billing.RecordPayment(ctx, params)
}

func (r *postgresRepository) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]persistence.Payment, error) {
	return r.billing.ListPaymentsByInvoice(ctx, invoiceID)
}

func (r *postgresRepository) GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error) {
	return r.leases.GetLease(ctx, id)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}
