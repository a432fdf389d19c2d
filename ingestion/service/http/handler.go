package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"docnotary/blockchain/types"
	"docnotary/gas"
	"docnotary/ingestion"
	core "docnotary/ingestion/service/core"
	"docnotary/notarization"
	"docnotary/validation"

	"github.com/go-chi/chi/v5"
)

// Handler serves the gateway API over the core Service
type Handler struct {
	svc    *core.Service
	logger *log.Logger
}

// NewHandler creates a new Handler
func NewHandler(s *core.Service, l *log.Logger) *Handler {
	return &Handler{svc: s, logger: l}
}

// FileRoutes exposes the file pipeline
func (h *Handler) FileRoutes(maxUploadBytes int64) chi.Router {
	router := chi.NewRouter()
	router.Post("/", h.uploadFiles(maxUploadBytes))
	router.Get("/", h.ListFiles)
	router.Get("/{id}", h.GetFile)
	router.Delete("/{id}", h.RemoveFile)
	return router
}

// NotarizationRoutes exposes the transaction manager
func (h *Handler) NotarizationRoutes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", h.SubmitNotarization)
	router.Get("/", h.ListNotarizations)
	router.Delete("/", h.ClearNotarizations)
	router.Get("/stats", h.NotarizationStats)
	router.Get("/{id}", h.GetNotarization)
	router.Delete("/{id}", h.RemoveNotarization)
	router.Post("/{id}/stop", h.StopWatching)
	router.Post("/{id}/resume", h.ResumeWatching)
	return router
}

// UploadResponse is returned by POST /v1/files
type UploadResponse struct {
	Validation validation.BatchResult    `json:"validation"`
	Files      []ingestion.ProcessedFile `json:"files"`
}

// uploadFiles handles multipart POST /v1/files requests.
// Every part named "files" is one document; an optional "last_modified" value per
// file, in unix milliseconds, is matched by position.
func (h *Handler) uploadFiles(maxUploadBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.respondError(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			h.respondError(w, "Bad Request: expected multipart/form-data", http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File["files"]
		if len(headers) == 0 {
			h.respondError(w, "at least one file part named 'files' is required", http.StatusBadRequest)
			return
		}
		modified := r.MultipartForm.Value["last_modified"]

		files := make([]ingestion.File, 0, len(headers))
		for i, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				h.respondError(w, fmt.Sprintf("failed to read %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				h.respondError(w, fmt.Sprintf("failed to read %s: %v", fh.Filename, err), http.StatusBadRequest)
				return
			}

			lastModified := time.Now().UnixMilli()
			if i < len(modified) {
				if v, err := strconv.ParseInt(modified[i], 10, 64); err == nil {
					lastModified = v
				}
			}
			mimeType := fh.Header.Get("Content-Type")
			if mimeType == "application/octet-stream" {
				mimeType = ""
			}
			files = append(files, ingestion.NewMemoryFile(fh.Filename, mimeType, data, lastModified))
		}

		batch, added, err := h.svc.AddFiles(r.Context(), files)
		if err != nil {
			h.logger.Printf("HTTP Handler: Failed to queue files: %v", err)
			h.respondError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		status := http.StatusOK
		if len(batch.GlobalErrors) > 0 {
			status = http.StatusUnprocessableEntity
		}
		h.respondJSON(w, UploadResponse{Validation: batch, Files: added}, status)
	}
}

// ListFiles handles GET /v1/files
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files := h.svc.Files().List()
	if files == nil {
		files = []ingestion.ProcessedFile{}
	}
	h.respondJSON(w, files, http.StatusOK)
}

// GetFile handles GET /v1/files/{id}
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	file, ok := h.svc.Files().Get(chi.URLParam(r, "id"))
	if !ok {
		h.respondError(w, ingestion.ErrFileNotFound.Error(), http.StatusNotFound)
		return
	}
	h.respondJSON(w, file, http.StatusOK)
}

// RemoveFile handles DELETE /v1/files/{id}
func (h *Handler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Files().Remove(chi.URLParam(r, "id")) {
		h.respondError(w, ingestion.ErrFileNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type estimateRequest struct {
	Hash string `json:"hash"`
	Meta string `json:"meta"`
}

// EstimateGas handles POST /v1/gas/estimate
func (h *Handler) EstimateGas(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return
	}
	estimate, err := h.svc.EstimateGas(r.Context(), req.Hash, req.Meta)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, estimate, http.StatusOK)
}

type notarizeRequest struct {
	Hash     string `json:"hash,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Meta     string `json:"meta,omitempty"`
}

// SubmitNotarization handles POST /v1/notarizations
func (h *Handler) SubmitNotarization(w http.ResponseWriter, r *http.Request) {
	var req notarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Printf("HTTP Handler: Failed to parse JSON request: %v", err)
		h.respondError(w, "Bad Request: Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.Hash == "" && req.FileID == "" {
		h.respondError(w, "hash or file_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.svc.Notarize(r.Context(), &core.NotarizeInput{
		Hash:     req.Hash,
		FileID:   req.FileID,
		FileName: req.FileName,
		Meta:     req.Meta,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, map[string]interface{}{
		"request_id":     result.RequestID,
		"transaction_id": result.TransactionID,
		"hash":           result.Hash,
		"received_at":    result.ReceivedAt.Format(time.RFC3339Nano),
		"status":         "ACCEPTED",
	}, http.StatusAccepted)
}

// ListNotarizations handles GET /v1/notarizations
func (h *Handler) ListNotarizations(w http.ResponseWriter, r *http.Request) {
	txs := h.svc.Transactions().List()
	if txs == nil {
		txs = []notarization.Transaction{}
	}
	h.respondJSON(w, txs, http.StatusOK)
}

// NotarizationStats handles GET /v1/notarizations/stats
func (h *Handler) NotarizationStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, h.svc.Transactions().Stats(), http.StatusOK)
}

// GetNotarization handles GET /v1/notarizations/{id}
func (h *Handler) GetNotarization(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.svc.Transactions().Get(chi.URLParam(r, "id"))
	if !ok {
		h.respondError(w, notarization.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	h.respondJSON(w, tx, http.StatusOK)
}

// RemoveNotarization handles DELETE /v1/notarizations/{id}
func (h *Handler) RemoveNotarization(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Transactions().Remove(chi.URLParam(r, "id")) {
		h.respondError(w, notarization.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotarizations handles DELETE /v1/notarizations
func (h *Handler) ClearNotarizations(w http.ResponseWriter, r *http.Request) {
	h.svc.Transactions().ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

// StopWatching handles POST /v1/notarizations/{id}/stop
func (h *Handler) StopWatching(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.svc.Transactions().Get(id); !ok {
		h.respondError(w, notarization.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	h.respondJSON(w, map[string]bool{"stopped": h.svc.Transactions().StopWatching(id)}, http.StatusOK)
}

// ResumeWatching handles POST /v1/notarizations/{id}/resume
func (h *Handler) ResumeWatching(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Transactions().Resume(r.Context(), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	tx, _ := h.svc.Transactions().Get(id)
	h.respondJSON(w, tx, http.StatusAccepted)
}

// GetDocument handles GET /v1/documents/{hash}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	details, err := h.svc.Transactions().DocumentDetails(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, details, http.StatusOK)
}

// respondServiceError maps service errors to appropriate HTTP status codes
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	statusCode := StatusFor(err)
	if statusCode >= http.StatusInternalServerError {
		h.logger.Printf("HTTP Handler: Service layer processing failed: %v", err)
	}
	message := err.Error()
	var txErr *notarization.TxError
	if errors.As(err, &txErr) {
		message = txErr.Message
	}
	h.respondError(w, message, statusCode)
}

// StatusFor returns the HTTP status for a service error
func StatusFor(err error) int {
	switch {
	case errors.Is(err, notarization.ErrAlreadyNotarized),
		errors.Is(err, notarization.ErrInFlight),
		errors.Is(err, notarization.ErrAlreadyWatching),
		errors.Is(err, notarization.ErrNotConfirming),
		errors.Is(err, core.ErrFileNotReady):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidHash),
		errors.Is(err, core.ErrHashMismatch):
		return http.StatusBadRequest
	case errors.Is(err, notarization.ErrNotFound),
		errors.Is(err, notarization.ErrDocumentNotFound),
		errors.Is(err, ingestion.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, notarization.ErrWalletNotConnected),
		errors.Is(err, notarization.ErrNoContract),
		errors.Is(err, gas.ErrNoChain):
		return http.StatusServiceUnavailable
	case errors.Is(err, gas.ErrEstimationFailed),
		errors.Is(err, types.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
