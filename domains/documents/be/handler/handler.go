package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebasehq/homebase/domains/documents/be/service"
	"github.com/homebasehq/homebase/platform/go/auth"
	platformlogging "github.com/homebasehq/homebase/platform/go/logging"
	"github.com/homebasehq/homebase/platform/go/problem"
)

// maxUploadBytes caps a single document upload at 25 MiB.
const maxUploadBytes = 25 << 20

// Handler wires the document service to the HTTP surface.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("document service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the document endpoints under manager authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleManager))
		r.Post("/leases/{leaseID}/documents", h.Upload)
		r.Get("/leases/{leaseID}/documents", h.List)
		r.Get("/documents/{documentID}/download", h.Download)
		r.Delete("/documents/{documentID}", h.Delete)
	})
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, ok := h.pathUUID(w, r, "leaseID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		problem.Write(w, problem.New(http.StatusBadRequest, "Invalid request body",
			"request body must be multipart/form-data with a file part", problem.TypeValidation))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			"file": {"a file part named \"file\" is required"},
		}}, "uploadDocument")
		return
	}
	defer file.Close()

	document, err := h.svc.Upload(r.Context(), creds.ID, leaseID, service.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.writeError(w, r, err, "uploadDocument")
		return
	}
	problem.WriteJSON(w, http.StatusCreated, document)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	leaseID, ok := h.pathUUID(w, r, "leaseID")
	if !ok {
		return
	}

	documents, err := h.svc.List(r.Context(), creds.ID, leaseID)
	if err != nil {
		h.writeError(w, r, err, "listDocuments")
		return
	}
	problem.WriteJSON(w, http.StatusOK, map[string]any{"items": documents})
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	documentID, ok := h.pathUUID(w, r, "documentID")
	if !ok {
		return
	}

	download, err := h.svc.Open(r.Context(), creds.ID, documentID)
	if err != nil {
		h.writeError(w, r, err, "downloadDocument")
		return
	}
	defer download.Body.Close()

	w.Header().Set("Content-Type", download.Document.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(download.Document.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(download.Document.ObjectKey)))
	if _, err := io.Copy(w, download.Body); err != nil {
		h.loggerFrom(r).Warn("document stream interrupted",
			zap.String("documentId", documentID.String()), zap.Error(err))
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	creds, ok := auth.UserFromContext(r.Context())
	if !ok {
		problem.Write(w, problem.New(http.StatusUnauthorized, "Unauthorized", "authentication required", problem.TypeUnauthorized))
		return
	}

	documentID, ok := h.pathUUID(w, r, "documentID")
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), creds.ID, documentID); err != nil {
		h.writeError(w, r, err, "deleteDocument")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// downloadName extracts the original filename from an object key of the form
// "leases/<lease_id>/v<N>/<name>".
func downloadName(objectKey string) string {
	for i := len(objectKey) - 1; i >= 0; i-- {
		if objectKey[i] == '/' {
			return objectKey[i+1:]
		}
	}
	return objectKey
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, r, &service.ValidationError{Fields: service.FieldErrors{
			param: {param + " must be a UUID"},
		}}, "parsePath")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	status, details := classifyError(err)

	logger := h.loggerFrom(r)
	fields := []zap.Field{zap.String("operation", operation), zap.Int("status", status)}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("document operation failed", append(fields, zap.Error(err))...)
	case status == http.StatusNotFound:
		logger.Info("document not found", fields...)
	default:
		logger.Warn("document request rejected", append(fields, zap.Error(err))...)
	}

	problem.Write(w, details)
}

func classifyError(err error) (int, problem.Details) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest,
			problem.New(http.StatusBadRequest, "Validation failed", "one or more fields are invalid", problem.TypeValidation).
				WithFields(validationErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound,
			problem.New(http.StatusNotFound, "Resource not found", "document not found", problem.TypeNotFound)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden,
			problem.New(http.StatusForbidden, "Forbidden", "not allowed to act on this document", problem.TypeForbidden)
	default:
		return http.StatusInternalServerError,
			problem.New(http.StatusInternalServerError, "Internal server error", "an unexpected error occurred", problem.TypeInternal)
	}
}

func (h *Handler) loggerFrom(r *http.Request) *zap.Logger {
	if logger, ok := platformlogging.FromContext(r.Context()); ok {
		return logger
	}
	return h.logger
}
