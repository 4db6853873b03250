package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/homebasehq/homebase/domains/documents/be/repo"
	"github.com/homebasehq/homebase/platform/go/persistence"
	"github.com/homebasehq/homebase/platform/go/storage"
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
	ErrNotFound  = errors.New("document not found")
	ErrForbidden = errors.New("not allowed to act on this document")
)

// Document mirrors a stored lease document record.
type Document = persistence.LeaseDocument

// UploadInput carries the metadata and byte stream of an upload. The document
// is versioned against the lease's current document_version.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Download pairs a document record with its blob reader. The caller owns
// closing Body.
type Download struct {
	Document Document
	Body     io.ReadCloser
}

// Service exposes lease document operations.
type Service interface {
	Upload(ctx context.Context, managerID string, leaseID uuid.UUID, input UploadInput) (Document, error)
	List(ctx context.Context, managerID string, leaseID uuid.UUID) ([]Document, error)
	Open(ctx context.Context, managerID string, documentID uuid.UUID) (Download, error)
	Delete(ctx context.Context, managerID string, documentID uuid.UUID) error
}

type service struct {
	repo  domainrepo.Repository
	blobs storage.BlobStore
	now   func() time.Time
}

// New builds a document Service over the repository and blob backend.
func New(repo domainrepo.Repository, blobs storage.BlobStore) Service {
	if repo == nil {
		panic("document repo is required")
	}
	if blobs == nil {
		panic("blob store is required")
	}
	return &service{
		repo:  repo,
		blobs: blobs,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Upload(ctx context.Context, managerID string, leaseID uuid.UUID, input UploadInput) (Document, error) {
	lease, err := s.ownedLease(ctx, managerID, leaseID)
	if err != nil {
		return Document{}, err
	}

	fieldErrors := FieldErrors{}
	if strings.TrimSpace(input.Filename) == "" {
		addFieldError(fieldErrors, "file", "a file name is required")
	}
	if input.Body == nil {
		addFieldError(fieldErrors, "file", "a file body is required")
	}
	if len(fieldErrors) > 0 {
		return Document{}, &ValidationError{Fields: fieldErrors}
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := storage.DocumentObjectKey(leaseID.String(), lease.DocumentVersion, input.Filename)
	if err != nil {
		return Document{}, &ValidationError{Fields: FieldErrors{
			"file": {err.Error()},
		}}
	}

	size, err := s.blobs.Put(ctx, key, contentType, input.Body)
	if err != nil {
		return Document{}, err
	}

	document, err := s.repo.CreateDocument(ctx, persistence.CreateDocumentParams{
		DocumentID:  uuid.New(),
		LeaseID:     leaseID,
		Version:     lease.DocumentVersion,
		ObjectKey:   key,
		ContentType: contentType,
		SizeBytes:   size,
		UploadedBy:  managerID,
	})
	if err != nil {
		// the blob is orphaned if the record insert fails; best effort cleanup
		_ = s.blobs.Delete(ctx, key)
		if errors.Is(err, persistence.ErrLeaseNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return document, nil
}

func (s *service) List(ctx context.Context, managerID string, leaseID uuid.UUID) ([]Document, error) {
	if _, err := s.ownedLease(ctx, managerID, leaseID); err != nil {
		return nil, err
	}
	return s.repo.ListDocumentsByLease(ctx, leaseID)
}

func (s *service) Open(ctx context.Context, managerID string, documentID uuid.UUID) (Download, error) {
	document, err := s.ownedDocument(ctx, managerID, documentID)
	if err != nil {
		return Download{}, err
	}

	body, err := s.blobs.Get(ctx, document.ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Download{}, ErrNotFound
		}
		return Download{}, err
	}
	return Download{Document: document, Body: body}, nil
}

func (s *service) Delete(ctx context.Context, managerID string, documentID uuid.UUID) error {
	document, err := s.ownedDocument(ctx, managerID, documentID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteDocument(ctx, documentID); err != nil {
		if errors.Is(err, persistence.ErrDocumentNotFound) {
			return ErrNotFound
		}
		return err
	}

	if err := s.blobs.Delete(ctx, document.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	return nil
}

func (s *service) ownedDocument(ctx context.Context, managerID string, documentID uuid.UUID) (Document, error) {
	document, err := s.repo.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, persistence.ErrDocumentNotFound) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	if _, err := s.ownedLease(ctx, managerID, document.LeaseID); err != nil {
		return Document{}, err
	}
	return document, nil
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

func addFieldError(m FieldErrors, field, message string) {
	m[field] = append(m[field], message)
}
