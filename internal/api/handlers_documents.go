package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
	"github.com/lawsonmobiletax/crm-server/internal/storage"
)

// maxUploadBytes caps document uploads at 25 MB.
const maxUploadBytes = 25 << 20

// HandleUploadDocument accepts a multipart upload, stores the content in
// the configured backend, and records the metadata row.
//
//	POST /api/documents  (multipart: file, clientId?)
func (h *Handlers) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart form or file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	var clientID *string
	if v := r.FormValue("clientId"); v != "" {
		if _, err := h.clients.Get(r.Context(), session.OrgID, v); err != nil {
			if errors.Is(err, postgres.ErrClientNotFound) {
				httputil.NotFound(w, "client not found")
				return
			}
			httputil.InternalError(w, err)
			return
		}
		clientID = &v
	}

	key := storage.NewKey(session.OrgID, header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.ContentTypeFor(header.Filename)
	}
	if err := h.files.Put(r.Context(), key, contentType, file); err != nil {
		httputil.InternalError(w, err)
		return
	}

	d := &domain.Document{
		ID:             uuid.New().String(),
		OrganizationID: session.OrgID,
		ClientID:       clientID,
		FileName:       header.Filename,
		StorageKey:     key,
		ContentType:    contentType,
		SizeBytes:      header.Size,
	}
	if err := h.documents.Create(r.Context(), d); err != nil {
		// Don't leave orphaned content behind.
		_ = h.files.Delete(r.Context(), key)
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, d)
}

// HandleListDocuments lists document metadata.
//
//	GET /api/documents?clientId=&limit=&offset=
func (h *Handlers) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	limit, offset := pageParams(r)

	docs, total, err := h.documents.List(r.Context(), session.OrgID, postgres.DocumentFilter{
		ClientID: r.URL.Query().Get("clientId"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	httputil.OK(w, listEnvelope{Data: docs, Total: total, Limit: limit, Offset: offset})
}

// HandleGetDocument returns document metadata.
//
//	GET /api/documents/{id}
func (h *Handlers) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	d, err := h.documents.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrDocumentNotFound) {
		httputil.NotFound(w, "document not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, d)
}

// HandleDocumentContent streams the stored file back to the caller.
//
//	GET /api/documents/{id}/content
func (h *Handlers) HandleDocumentContent(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	d, err := h.documents.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrDocumentNotFound) {
		httputil.NotFound(w, "document not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	rc, contentType, err := h.files.Get(r.Context(), d.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, "document content not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", d.FileName))
	io.Copy(w, rc)
}

// HandleDeleteDocument removes the metadata row and the stored content.
//
//	DELETE /api/documents/{id}
func (h *Handlers) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	d, err := h.documents.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrDocumentNotFound) {
		httputil.NotFound(w, "document not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	if err := h.documents.Delete(r.Context(), session.OrgID, d.ID); err != nil {
		httputil.InternalError(w, err)
		return
	}
	// Content removal is best-effort; the metadata row is authoritative.
	_ = h.files.Delete(r.Context(), d.StorageKey)
	httputil.NoContent(w)
}
