// Package transport provides HTTP handlers for the snapshots domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/buildcfg/internal/auth"
	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/internal/snapshots/domain"
)

// MaxDocumentBytes bounds the size of a published document.
const MaxDocumentBytes = 1 << 20

// Service defines the snapshot service interface for HTTP transport.
type Service interface {
	Validate(ctx context.Context, data []byte, format project.Format) (*domain.ValidationResult, error)
	Publish(ctx context.Context, projectName, ownerID string, data []byte, format project.Format) (*domain.Snapshot, error)
	Get(ctx context.Context, projectName, id string) (*domain.Snapshot, error)
	List(ctx context.Context, projectName string, pagination domain.PaginationParams) (*domain.ListResult, error)
	Projects(ctx context.Context, pagination domain.PaginationParams) (*domain.ProjectList, error)
	Delete(ctx context.Context, projectName, id, ownerID string) error
}

// Handler handles HTTP requests for snapshots.
type Handler struct {
	svc Service
}

// NewHandler creates a new snapshots HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers read-only snapshot routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/", h.handleProjects)
	r.Get("/{project}", h.handleList)
	r.Get("/{project}/{id}", h.handleGet)
}

// RegisterWriteRoutes registers write snapshot routes (auth required).
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Post("/{project}", h.handlePublish)
	r.Delete("/{project}/{id}", h.handleDelete)
}

// HandleValidate checks a document without storing it.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	data, format, ok := readDocument(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Validate(r.Context(), data, format)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidConfig) {
			writeJSON(w, http.StatusOK, map[string]any{
				"valid": false,
				"error": errorBody(errorCode(err), err.Error()),
			})
			return
		}
		writeServiceError(w, err, "Failed to validate document")
		return
	}

	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:          len(result.LiteralSecrets) == 0,
		Fingerprint:    result.Fingerprint,
		Networks:       nonNil(result.Networks),
		Compilers:      nonNil(result.Compilers),
		LiteralSecrets: nonNil(result.LiteralSecrets),
		Verification:   result.Verification,
	})
}

func (h *Handler) handleProjects(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	result, err := h.svc.Projects(r.Context(), domain.PaginationParams{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list projects")
		return
	}

	data := make([]ProjectItem, len(result.Projects))
	for i, p := range result.Projects {
		data[i] = ProjectItem{
			Name:           p.Name,
			LatestRevision: p.LatestRevision,
			Snapshots:      p.Snapshots,
			UpdatedAt:      formatTime(p.UpdatedAt),
		}
	}

	writeJSON(w, http.StatusOK, ProjectListResponse{
		Data: data,
		Pagination: Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	result, err := h.svc.List(r.Context(), chi.URLParam(r, "project"), domain.PaginationParams{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	})
	if err != nil {
		writeServiceError(w, err, "Failed to list snapshots")
		return
	}

	data := make([]SnapshotResponse, len(result.Snapshots))
	for i := range result.Snapshots {
		data[i] = toSnapshotResponse(&result.Snapshots[i], nil)
	}

	writeJSON(w, http.StatusOK, SnapshotListResponse{
		Data: data,
		Pagination: Pagination{
			Limit:      limit,
			HasMore:    result.HasMore,
			NextCursor: result.NextCursor,
		},
	})
}

// handleGet returns a snapshot. With ?format= the document itself is served
// in that format; otherwise it is embedded in the JSON metadata.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Get(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get snapshot")
		return
	}

	if f := r.URL.Query().Get("format"); f != "" {
		format, err := project.ParseFormat(f)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		data, err := project.EncodeDocument(snap.Document, format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render document")
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("X-Snapshot-ID", snap.ID)
		w.Header().Set("X-Snapshot-Revision", strconv.FormatInt(snap.Revision, 10))
		w.Header().Set("X-Snapshot-Fingerprint", snap.Fingerprint)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	document, err := json.Marshal(snap.Document)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render document")
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap, document))
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	data, format, ok := readDocument(w, r)
	if !ok {
		return
	}

	ownerID := auth.GetOwnerIDFromContext(r.Context())
	snap, err := h.svc.Publish(r.Context(), chi.URLParam(r, "project"), ownerID, data, format)
	if err != nil {
		writeServiceError(w, err, "Failed to publish snapshot")
		return
	}

	w.Header().Set("Location", "/api/v1/snapshots/"+snap.Project+"/"+snap.ID)
	writeJSON(w, http.StatusCreated, toSnapshotResponse(snap, nil))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.GetOwnerIDFromContext(r.Context())
	err := h.svc.Delete(r.Context(), chi.URLParam(r, "project"), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		writeServiceError(w, err, "Failed to delete snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readDocument reads a bounded request body and picks its format from
// ?format= or, failing that, the Content-Type header.
func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, project.Format, bool) {
	var format project.Format
	var err error
	if f := r.URL.Query().Get("format"); f != "" {
		format, err = project.ParseFormat(f)
	} else {
		format, err = project.FormatFromContentType(r.Header.Get("Content-Type"))
	}
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", err.Error())
		return nil, "", false
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxDocumentBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Document exceeds maximum size")
			return nil, "", false
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return nil, "", false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Request body is empty")
		return nil, "", false
	}
	return data, format, true
}

func parseLimit(r *http.Request) int {
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}

// errorCode names the error class reported to clients. Configuration errors
// carry their kind so callers can match on it.
func errorCode(err error) string {
	if kind, ok := project.KindOf(err); ok {
		return "INVALID_CONFIG_" + toUpperSnake(string(kind))
	}
	switch {
	case errors.Is(err, domain.ErrLiteralSecret):
		return "LITERAL_SECRET"
	case errors.Is(err, domain.ErrUnchanged):
		return "UNCHANGED"
	case errors.Is(err, domain.ErrInvalidConfig):
		return "INVALID_CONFIG"
	default:
		return "INVALID_REQUEST"
	}
}

func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Snapshot not found")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Not authorized to modify this project")
	case errors.Is(err, domain.ErrInvalidName), errors.Is(err, domain.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrUnchanged):
		writeError(w, http.StatusConflict, "UNCHANGED", err.Error())
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrLiteralSecret):
		writeError(w, http.StatusUnprocessableEntity, errorCode(err), err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

// toUpperSnake turns an error kind like "MalformedURL" into "MALFORMED_URL".
func toUpperSnake(s string) string {
	var b strings.Builder
	for i, c := range s {
		if i > 0 && unicode.IsUpper(c) {
			prev := rune(s[i-1])
			nextLower := i+1 < len(s) && unicode.IsLower(rune(s[i+1]))
			if unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(c))
	}
	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Helper functions

func errorBody(code, message string) map[string]any {
	return map[string]any{
		"code":    code,
		"message": message,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError renders the API error envelope. It is shared with the
// server's auth middleware so every error has the same shape.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": errorBody(code, message)})
}
