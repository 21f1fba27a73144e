package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"voucherwatch/internal/links"
	"voucherwatch/internal/models"
	"voucherwatch/internal/storage"

	"github.com/gorilla/mux"
)

// maxRequestBodyBytes caps POST bodies; a voucher link is well under 1 KiB.
const maxRequestBodyBytes = 16 << 10

// Handlers contains HTTP handlers for the voucherwatch API
type Handlers struct {
	links     links.ServiceInterface
	storage   storage.Storage
	version   string
	startedAt time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithStorage lets the health check ping the link store.
func WithStorage(store storage.Storage) HandlerOption {
	return func(h *Handlers) {
		h.storage = store
	}
}

// WithVersion sets the version reported by the health check.
func WithVersion(version string) HandlerOption {
	return func(h *Handlers) {
		h.version = version
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(linkService links.ServiceInterface, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		links:     linkService,
		version:   "dev",
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ListLinks handles link listing requests
// GET /api/v1/links
func (h *Handlers) ListLinks(w http.ResponseWriter, r *http.Request) {
	response, err := h.links.ListLinks(r.Context())
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// AddLink handles link creation requests
// POST /api/v1/links
func (h *Handlers) AddLink(w http.ResponseWriter, r *http.Request) {
	var req models.AddLinkRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		return
	}

	response, err := h.links.AddLink(r.Context(), req.URL)
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, response)
}

// DeleteLink handles link removal requests
// DELETE /api/v1/links/{id}
func (h *Handlers) DeleteLink(w http.ResponseWriter, r *http.Request) {
	response, err := h.links.DeleteLink(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// LinkSummary handles breakdown requests for a saved link
// GET /api/v1/links/{id}/summary
func (h *Handlers) LinkSummary(w http.ResponseWriter, r *http.Request) {
	response, err := h.links.LinkSummary(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// VoucherData proxies the raw voucher group from the CDC API
// GET /api/v1/vouchers/{voucher_id}
func (h *Handlers) VoucherData(w http.ResponseWriter, r *http.Request) {
	response, err := h.links.VoucherData(r.Context(), mux.Vars(r)["voucher_id"])
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// VoucherSummary handles breakdown requests for a voucher group
// GET /api/v1/vouchers/{voucher_id}/summary
func (h *Handlers) VoucherSummary(w http.ResponseWriter, r *http.Request) {
	response, err := h.links.VoucherSummary(r.Context(), mux.Vars(r)["voucher_id"])
	if err != nil {
		h.writeServiceErrorResponse(w, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = h.version
	response.Uptime = time.Since(h.startedAt).Round(time.Second).String()

	storageStatus := models.StatusHealthy
	storageMsg := "Storage is operational"
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			slog.Warn("Storage health check failed", "error", err)
			storageStatus = models.StatusUnhealthy
			storageMsg = "Storage is unreachable"
			response.Status = models.StatusDegraded
		}
	}
	response.AddComponent("storage", storageStatus, storageMsg)
	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, data)
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeJSON(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceErrorResponse maps a links.ServiceError to its HTTP form.
// Anything else is an unexpected failure and is reported as a 500.
func (h *Handlers) writeServiceErrorResponse(w http.ResponseWriter, err error) {
	var serviceErr *links.ServiceError
	if errors.As(err, &serviceErr) {
		if serviceErr.StatusCode >= http.StatusInternalServerError {
			slog.Error("Request failed", "code", serviceErr.Code, "error", err)
		}
		h.writeErrorResponse(w, serviceErr.StatusCode, serviceErr.Code, serviceErr.Message)
		return
	}

	slog.Error("Unexpected service error", "error", err)
	h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// decodeJSONBody decodes a single bounded JSON object from the request body.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
