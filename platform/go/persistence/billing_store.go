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

const (
	InvoicesTable = "invoices"
	PaymentsTable = "payments"
)

var (
	// ErrInvoiceNotFound indicates a missing invoice record.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// Invoice represents a row in the invoices table.
type Invoice struct {
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoiceId"`
	LeaseID     uuid.UUID `db:"lease_id" json:"leaseId"`
	Description string    `db:"description" json:"description"`
	AmountDue   float64   `db:"amount_due" json:"amountDue"`
	DueDate     time.Time `db:"due_date" json:"dueDate"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Payment represents a row in the payments table.
type Payment struct {
	PaymentID uuid.UUID `db:"payment_id" json:"paymentId"`
	InvoiceID uuid.UUID `db:"invoice_id" json:"invoiceId"`
	Amount    float64   `db:"amount" json:"amount"`
	Method    string    `db:"method" json:"method"`
	Note      string    `db:"note" json:"note"`
	PaidAt    time.Time `db:"paid_at" json:"paidAt"`
}

// InvoiceBalance is an invoice joined with its payment aggregate.
type InvoiceBalance struct {
	Invoice Invoice `json:"invoice"`
	Paid    float64 `json:"paid"`
}

const invoiceColumns = "invoice_id, lease_id, description, amount_due, due_date, created_at"
const paymentColumns = "payment_id, invoice_id, amount, method, note, paid_at"

// BillingStore exposes persistence helpers for invoices and payments.
type BillingStore struct {
	pool *pgxpool.Pool
}

// NewBillingStore returns a store instance backed by the shared pool.
func NewBillingStore(pool *pgxpool.Pool) (*BillingStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &BillingStore{pool: pool}, nil
}

// CreateInvoiceParams captures the fields required to insert an invoice.
type CreateInvoiceParams struct {
	InvoiceID   uuid.UUID
	LeaseID     uuid.UUID
	Description string
	AmountDue   float64
	DueDate     time.Time
}

// CreateInvoice inserts a new invoice and returns the persisted record.
func (s *BillingStore) CreateInvoice(ctx context.Context, params CreateInvoiceParams) (Invoice, error) {
	if params.InvoiceID == uuid.Nil {
		return Invoice{}, errors.New("invoice id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (invoice_id, lease_id, description, amount_due, due_date)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING %s
    `, InvoicesTable, invoiceColumns),
		params.InvoiceID, params.LeaseID, params.Description, params.AmountDue, params.DueDate,
	)

	invoice, err := scanInvoice(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Invoice{}, ErrLeaseNotFound
		}
		return Invoice{}, err
	}
	return invoice, nil
}

// GetInvoiceBalance returns an invoice with the sum of its payments.
func (s *BillingStore) GetInvoiceBalance(ctx context.Context, id uuid.UUID) (InvoiceBalance, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT i.invoice_id, i.lease_id, i.description, i.amount_due, i.due_date, i.created_at,
               COALESCE(SUM(p.amount), 0)
        FROM %s i
        LEFT JOIN %s p ON p.invoice_id = i.invoice_id
        WHERE i.invoice_id = $1
        GROUP BY i.invoice_id
    `, InvoicesTable, PaymentsTable), id)

	var balance InvoiceBalance
	inv := &balance.Invoice
	err := row.Scan(&inv.InvoiceID, &inv.LeaseID, &inv.Description, &inv.AmountDue, &inv.DueDate, &inv.CreatedAt, &balance.Paid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InvoiceBalance{}, ErrInvoiceNotFound
		}
		return InvoiceBalance{}, err
	}
	return balance, nil
}

// ListInvoicesByLease returns the lease's invoices with payment aggregates,
// due soonest first.
func (s *BillingStore) ListInvoicesByLease(ctx context.Context, leaseID uuid.UUID) ([]InvoiceBalance, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT i.invoice_id, i.lease_id, i.description, i.amount_due, i.due_date, i.created_at,
               COALESCE(SUM(p.amount), 0)
        FROM %s i
        LEFT JOIN %s p ON p.invoice_id = i.invoice_id
        WHERE i.lease_id = $1
        GROUP BY i.invoice_id
        ORDER BY i.due_date
    `, InvoicesTable, PaymentsTable), leaseID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	balances := make([]InvoiceBalance, 0)
	for rows.Next() {
		var balance InvoiceBalance
		inv := &balance.Invoice
		if err := rows.Scan(&inv.InvoiceID, &inv.LeaseID, &inv.Description, &inv.AmountDue, &inv.DueDate, &inv.CreatedAt, &balance.Paid); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		balances = append(balances, balance)
	}
	return balances, rows.Err()
}

// RecordPaymentParams captures the fields required to insert a payment.
type RecordPaymentParams struct {
	PaymentID uuid.UUID
	InvoiceID uuid.UUID
	Amount    float64
	Method    string
	Note      string
	PaidAt    time.Time
}

// RecordPayment inserts a payment against an invoice.
func (s *BillingStore) RecordPayment(ctx context.Context, params RecordPaymentParams) (Payment, error) {
	if params.PaymentID == uuid.Nil {
		return Payment{}, errors.New("payment id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (payment_id, invoice_id, amount, method, note, paid_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING %s
    `, PaymentsTable, paymentColumns),
		params.PaymentID, params.InvoiceID, params.Amount, params.Method, params.Note, params.PaidAt,
	)

	var p Payment
	err := row.Scan(&p.PaymentID, &p.InvoiceID, &p.Amount, &p.Method, &p.Note, &p.PaidAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Payment{}, ErrInvoiceNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

// ListPaymentsByInvoice returns the payments recorded against an invoice.
func (s *BillingStore) ListPaymentsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE invoice_id = $1 ORDER BY paid_at
    `, paymentColumns, PaymentsTable), invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.PaymentID, &p.InvoiceID, &p.Amount, &p.Method, &p.Note, &p.PaidAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var i Invoice
	if err := row.Scan(&i.InvoiceID, &i.LeaseID, &i.Description, &i.AmountDue, &i.DueDate, &i.CreatedAt); err != nil {
		return Invoice{}, err
	}
	return i, nil
}
