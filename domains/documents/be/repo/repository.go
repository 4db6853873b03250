package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/homebasehq/homebase/platform/go/persistence"
)

// Repository exposes the persistence operations the document service needs.
type Repository interface {
	CreateDocument(ctx context.Context, params persistence.CreateDocumentParams) (persistence.LeaseDocument, error)
	GetDocument(ctx context.Context, id uuid.UUID) (persistence.LeaseDocument, error)
	ListDocumentsByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.LeaseDocument, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error)
	GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error)
}

type postgresRepository struct {
	documents  *persistence.DocumentStore
	leases     *persistence.LeaseStore
	properties *persistence.PropertyStore
}

// NewPostgresRepository constructs a Repository backed by the shared persistence layer.
func NewPostgresRepository(documents *persistence.DocumentStore, leases *persistence.LeaseStore, properties *persistence.PropertyStore) Repository {
	if documents == nil {
		panic("document store is required")
	}
	if leases == nil {
		panic("lease store is required")
	}
	if properties == nil {
		panic("property store is required")
	}
	return &postgresRepository{documents: documents, leases: leases, properties: properties}
}

func (r *postgresRepository) CreateDocument(ctx context.Context, params persistence.CreateDocumentParams) (persistence.LeaseDocument, error) {
	return r.documents.CreateDocument(ctx, params)
}

func (r *postgresRepository) GetDocument(ctx context.Context, id uuid.UUID) (persistence.LeaseDocument, error) {
	return r.documents.GetDocument(ctx, id)
}

func (r *postgresRepository) ListDocumentsByLease(ctx context.Context, leaseID uuid.UUID) ([]persistence.LeaseDocument, error) {
	return r.documents.ListDocumentsByLease(ctx, leaseID)
}

func (r *postgresRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return r.documents.DeleteDocument(ctx, id)
}

func (r *postgresRepository) GetLease(ctx context.Context, id uuid.UUID) (persistence.Lease, error) {
	return r.leases.GetLease(ctx, id)
}

func (r *postgresRepository) GetProperty(ctx context.Context, id uuid.UUID) (persistence.Property, error) {
	return r.properties.GetProperty(ctx, id)
}
