package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/billing/be/repo"
	"github.com/homebasehq/homebase/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound    = errors.New("invoice not found")
	ErrForbidden   = errors.New("not allowed to act on this invoice")
	ErrOverPayment = errors.New("payment exceeds outstanding balance")
)

// Invoice payment statuses, derived from the amount due and the payment sum.
const (
	StatusOpen          = "OPEN"
	StatusPartiallyPaid = "PARTIALLY_PAID"
	StatusPaid          = "PAID"
)

// Payment mirrors a stored payment record.
type Payment = persistence.Payment

// InvoiceView is an invoice enriched with its derived payment state.
type InvoiceView struct {
	persistence.Invoice
	Paid    float64 `json:"paid"`
	Balance float64 `json:"balance"`
	Status  string  `json:"status"`
}

// CreateInvoiceInput defines the payload required to raise an invoice.
type CreateInvoiceInput struct {
	Description string
	AmountDue   float64
	DueDate     time.Time
}

// RecordPaymentInput defines the payload required to record a payment.
type RecordPaymentInput struct {
	Amount float64
	Method string
	Note   string
}

// Service exposes invoice and payment operations.
type Service interface {
	CreateInvoice(ctx context.Context, managerID string, leaseID uuid.UUID, input CreateInvoiceInput) (InvoiceView, error)
	GetInvoice(ctx context.Context, managerID string, invoiceID uuid.UUID) (InvoiceView, error)
	ListInvoices(ctx context.Context, managerID string, leaseID uuid.UUID) ([]InvoiceView, error)
	RecordPayment(ctx context.Context, managerID string, invoiceID uuid.UUID, input RecordPaymentInput) (Payment, error)
	ListPayments(ctx context.Context, managerID string, invoiceID uuid.UUID) ([]Payment, error)
}

type service struct {
	repo domainrepo.Repository
	now  func() time.Time
}

// New builds a billing Service backed by the provided repository.
func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("billing repo is required")
	}
	return &service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) CreateInvoice(ctx context.Context, managerID string, leaseID uuid.UUID, input CreateInvoiceInput) (InvoiceView, error) {
	if _, err := s.ownedLease(ctx, managerID, leaseID); err != nil {
		return InvoiceView{}, err
	}

	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.Description) == "" {
		addFieldError(fieldErrors, "description", "description is required")
	}
	if input.AmountDue <= 0 {
		addFieldError(fieldErrors, "amountDue", "amountDue must be greater than zero")
	}
	if input.DueDate.IsZero() {
		addFieldError(fieldErrors, "dueDate", "dueDate is required")
	}
	if len(fieldErrors) > 0 {
		return InvoiceView{}, &ValidationError{Fields: fieldErrors}
	}

	invoice, err := s.repo.CreateInvoice(ctx, persistence.CreateInvoiceParams{
		InvoiceID:   uuid.New(),
		LeaseID:     leaseID,
		Description: input.Description,
		AmountDue:   input.AmountDue,
		DueDate:     input.DueDate,
	})
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return InvoiceView{}, ErrNotFound
		}
		return InvoiceView{}, err
	}
	return toView(persistence.InvoiceBalance{Invoice: invoice}), nil
}

func (s *service) GetInvoice(ctx context.Context, managerID string, invoiceID uuid.UUID) (InvoiceView, error) {
	balance, err := s.ownedInvoice(ctx, managerID, invoiceID)
	if err != nil {
		return InvoiceView{}, err
	}
	return toView(balance), nil
}

func (s *service) ListInvoices(ctx context.Context, managerID string, leaseID uuid.UUID) ([]InvoiceView, error) {
	if _, err := s.ownedLease(ctx, managerID, leaseID); err != nil {
		return nil, err
	}

	balances, err := s.repo.ListInvoicesByLease(ctx, leaseID)
	if err != nil {
		return nil, err
	}

	views := make([]InvoiceView, 0, len(balances))
	for _, balance := range balances {
		views = append(views, toView(balance))
	}
	return views, nil
}

func (s *service) RecordPayment(ctx context.Context, managerID string, invoiceID uuid.UUID, input RecordPaymentInput) (Payment, error) {
	balance, err := s.ownedInvoice(ctx, managerID, invoiceID)
	if err != nil {
		return Payment{}, err
	}

	fieldErrors := FieldErrors{}
	if input.Amount <= 0 {
		addFieldError(fieldErrors, "amount", "amount must be greater than zero")
	}
	if strings.TrimSpace(input.Method) == "" {
		addFieldError(fieldErrors, "method", "method is required")
	}
	if len(fieldErrors) > 0 {
		return Payment{}, &ValidationError{Fields: fieldErrors}
	}

	outstanding := balance.Invoice.AmountDue - balance.Paid
	if input.Amount > outstanding {
		return Payment{}, ErrOverPayment
	}

	payment, err := s.repo.RecordPayment(ctx, persistence.RecordPaymentParams{
		PaymentID: uuid.New(),
		InvoiceID: invoiceID,
		Amount:    input.Amount,
		Method:    input.Method,
		Note:      input.Note,
		PaidAt:    s.now(),
	})
	if err != nil {
		if errors.Is(err, persistence.ErrInvoiceNotFound) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	return payment, nil
}

func (s *service) ListPayments(ctx context.Context, managerID string, invoiceID uuid.UUID) ([]Payment, error) {
	if _, err := s.ownedInvoice(ctx, managerID, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentsByInvoice(ctx, invoiceID)
}

func (s *service) ownedInvoice(ctx context.Context, managerID string, invoiceID uuid.UUID) (persistence.InvoiceBalance, error) {
	balance, err := s.repo.GetInvoiceBalance(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, persistence.ErrInvoiceNotFound) {
			return persistence.InvoiceBalance{}, ErrNotFound
		}
		return persistence.InvoiceBalance{}, err
	}
	if _, err := s.ownedLease(ctx, managerID, balance.Invoice.LeaseID); err != nil {
		return persistence.InvoiceBalance{}, err
	}
	return balance, nil
}

func (s *service) ownedLease(ctx context.Context, managerID string, leaseID uuid.UUID) (persistence.Lease, error) {
	lease, err := s.repo.GetLease(ctx, leaseID)
	if err != nil {
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return persistence.Lease{}, ErrNotFound
		}
		return persistence.Lease{}, err
	}

	property, err := s.repo.GetProperty(ctx, lease.PropertyID)
	if err != nil {
		if errors.Is(err, persistence.ErrPropertyNotFound) {
			return persistence.Lease{}, ErrNotFound
		}
		return persistence.Lease{}, err
	}
	if property.ManagerID != managerID {
		return persistence.Lease{}, ErrForbidden
	}
	return lease, nil
}

// DeriveStatus maps a payment total to an invoice payment status.
func DeriveStatus(amountDue, paid float64) string {
	switch {
	case paid <= 0:
		return StatusOpen
	case paid < amountDue:
		return StatusPartiallyPaid
	default:
		return StatusPaid
	}
}

func toView(balance persistence.InvoiceBalance) InvoiceView {
	return InvoiceView{
		Invoice: balance.Invoice,
		Paid:    balance.Paid,
		Balance: balance.Invoice.AmountDue - balance.Paid,
		Status:  DeriveStatus(balance.Invoice.AmountDue, balance.Paid),
	}
}

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
