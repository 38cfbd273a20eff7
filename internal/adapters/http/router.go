package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/servicing-triage/internal/config"
	"github.com/kirillkom/servicing-triage/internal/core/domain"
	"github.com/kirillkom/servicing-triage/internal/core/ports"
	"github.com/kirillkom/servicing-triage/internal/observability/metrics"
)

const (
	maxUploadBytes   = 26 << 20
	backpressureWait = 100 * time.Millisecond
)

type Router struct {
	cfg       config.Config
	processor ports.DocumentProcessor
	parser    ports.DocumentParser
	storage   ports.ObjectStorage
	ingestor  ports.DocumentIngestor
	metrics   *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	processor ports.DocumentProcessor,
	parser ports.DocumentParser,
	storage ports.ObjectStorage,
	ingestor ports.DocumentIngestor,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		cfg:       cfg,
		processor: processor,
		parser:    parser,
		storage:   storage,
		ingestor:  ingestor,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("/v1/documents/process", rt.processDocument)
	api.HandleFunc("/v1/documents/upload", rt.uploadDocument)
	api.HandleFunc("/v1/records/", rt.getRecord)
	if rt.ingestor != nil {
		api.HandleFunc("/v1/documents", rt.enqueueDocument)
	}

	var guarded http.Handler = api
	guarded = backpressureMiddleware(guarded, rt.cfg.APIMaxInFlight, backpressureWait)
	guarded = rateLimitMiddleware(guarded, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	mux.Handle("/v1/", guarded)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var doc domain.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&doc); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(doc.ID) == "" {
		writeError(w, r, http.StatusBadRequest, "document id is required")
		return
	}
	rt.process(w, r, doc)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.parser.Parse(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rt.process(w, r, doc)
}

// enqueueDocument parses the upload and hands it to the worker pool.
func (rt *Router) enqueueDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"email_id":    doc.ID,
		"subject":     doc.Subject,
		"attachments": len(doc.Attachments),
		"record_url":  "/v1/records/" + doc.ID,
	})
}

func (rt *Router) process(w http.ResponseWriter, r *http.Request, doc domain.Document) {
	record, err := rt.processor.Process(r.Context(), doc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) getRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/records/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusBadRequest, "email id is required")
		return
	}

	body, err := rt.storage.Open(r.Context(), domain.OutputKey(id))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("record_stream_failed", "request_id", requestIDFromContext(r.Context()), "email_id", id, "error", err)
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed", "request_id", requestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": requestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
