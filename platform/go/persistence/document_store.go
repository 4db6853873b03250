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

const LeaseDocumentsTable = "lease_documents"

var (
	// ErrDocumentNotFound indicates a missing lease document record.
	ErrDocumentNotFound = errors.New("lease document not found")
)

// LeaseDocument represents a row in the lease_documents table. The object key
// locates the blob in the configured storage backend; version tracks the lease
// document_version the file was uploaded against.
type LeaseDocument struct {
	DocumentID  uuid.UUID `db:"document_id" json:"documentId"`
	LeaseID     uuid.UUID `db:"lease_id" json:"leaseId"`
	Version     int       `db:"version" json:"version"`
	ObjectKey   string    `db:"object_key" json:"objectKey"`
	ContentType string    `db:"content_type" json:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	UploadedBy  string    `db:"uploaded_by" json:"uploadedBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

const leaseDocumentColumns = "document_id, lease_id, version, object_key, content_type, size_bytes, uploaded_by, created_at"

// DocumentStore exposes persistence helpers for the lease_documents table.
type DocumentStore struct {
	pool *pgxpool.Pool
}

// NewDocumentStore returns a store instance backed by the shared pool.
func NewDocumentStore(pool *pgxpool.Pool) (*DocumentStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &DocumentStore{pool: pool}, nil
}

// CreateDocumentParams captures the fields required to record an upload.
type CreateDocumentParams struct {
	DocumentID  uuid.UUID
	LeaseID     uuid.UUID
	Version     int
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	UploadedBy  string
}

// CreateDocument records an uploaded lease document.
func (s *DocumentStore) CreateDocument(ctx context.Context, params CreateDocumentParams) (LeaseDocument, error) {
	if params.DocumentID == uuid.Nil {
		return LeaseDocument{}, errors.New("document id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (document_id, lease_id, version, object_key, content_type, size_bytes, uploaded_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s
    `, LeaseDocumentsTable, leaseDocumentColumns),
		params.DocumentID, params.LeaseID, params.Version, params.ObjectKey,
		params.ContentType, params.SizeBytes, params.UploadedBy,
	)

	document, err := scanLeaseDocument(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return LeaseDocument{}, ErrLeaseNotFound
		}
		return LeaseDocument{}, err
	}
	return document, nil
}

// GetDocument returns a single lease document by identifier.
func (s *DocumentStore) GetDocument(ctx context.Context, id uuid.UUID) (LeaseDocument, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE document_id = $1
    `, leaseDocumentColumns, LeaseDocumentsTable), id)

	document, err := scanLeaseDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LeaseDocument{}, ErrDocumentNotFound
		}
		return LeaseDocument{}, err
	}
	return document, nil
}

// ListDocumentsByLease returns the documents for a lease, newest version first.
func (s *DocumentStore) ListDocumentsByLease(ctx context.Context, leaseID uuid.UUID) ([]LeaseDocument, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE lease_id = $1 ORDER BY version DESC, created_at DESC
    `, leaseDocumentColumns, LeaseDocumentsTable), leaseID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	documents := make([]LeaseDocument, 0)
	for rows.Next() {
		document, scanErr := scanLeaseDocument(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan document: %w", scanErr)
		}
		documents = append(documents, document)
	}
	return documents, rows.Err()
}

// DeleteDocument removes a document record by identifier.
func (s *DocumentStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1`, LeaseDocumentsTable), id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func scanLeaseDocument(row pgx.Row) (LeaseDocument, error) {
	var d LeaseDocument
	if err := row.Scan(&d.DocumentID, &d.LeaseID, &d.Version, &d.ObjectKey, &d.ContentType, &d.SizeBytes, &d.UploadedBy, &d.CreatedAt); err != nil {
		return LeaseDocument{}, err
	}
	return d, nil
}
