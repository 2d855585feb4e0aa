// Package httpadapter exposes the orchestrator and the extractor over
// HTTP: a multipart upload façade plus the two raw extraction
// endpoints.
package httpadapter

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
	"github.com/nahuelPanigo/document-extraction-llm/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

// acceptedTypes is the caller-facing whitelist for the type form field.
var acceptedTypes = map[string]bool{
	"articulo":              true,
	"libro":                 true,
	"tesis":                 true,
	"general":               true,
	"objeto de conferencia": true,
}

type Router struct {
	orchestrator ports.MetadataExtractor
	extractor    ports.TextExtractor
	metrics      *metrics.HTTPServerMetrics
	service      string
	apiToken     string
}

func NewRouter(
	orchestrator ports.MetadataExtractor,
	extractor ports.TextExtractor,
	m *metrics.HTTPServerMetrics,
	service, apiToken string,
) *Router {
	return &Router{
		orchestrator: orchestrator,
		extractor:    extractor,
		metrics:      m,
		service:      service,
		apiToken:     apiToken,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	api := http.NewServeMux()
	api.HandleFunc("/upload", rt.upload)
	api.HandleFunc("/extract", rt.extractPlain)
	api.HandleFunc("/extract-with-tags", rt.extractTagged)

	var protected http.Handler = validationMiddleware(api)
	protected = bearerAuthMiddleware(rt.apiToken, protected)
	mux.Handle("/upload", protected)
	mux.Handle("/extract", protected)
	mux.Handle("/extract-with-tags", protected)

	handler := accessLogMiddleware(mux)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// upload runs the full pipeline over one document and answers with the
// generated metadata record.
func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "INVALID", "method not allowed")
		return
	}

	filename, raw, ok := rt.readUploadFile(w, r)
	if !ok {
		return
	}

	docType := strings.ToLower(strings.TrimSpace(r.FormValue("type")))
	if docType != "" && !acceptedTypes[docType] {
		writeError(w, http.StatusBadRequest, "INVALID", "unknown document type "+strconv.Quote(docType))
		return
	}

	req := domain.ExtractRequest{
		Filename:    filename,
		Data:        raw,
		Type:        docType,
		Normalize:   formBool(r, "normalization"),
		OCR:         formBool(r, "ocr"),
		DeepAnalyze: formBool(r, "deepanalyze"),
	}

	start := time.Now()
	record, err := rt.orchestrator.Extract(r.Context(), req)
	if rt.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		rt.metrics.RecordGeneration(rt.service, docType, status, time.Since(start))
		if req.DeepAnalyze {
			rt.metrics.RecordDeepAnalyze(rt.service, status)
		}
	}
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), errorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) extractPlain(w http.ResponseWriter, r *http.Request) {
	rt.extract(w, r, "plain")
}

func (rt *Router) extractTagged(w http.ResponseWriter, r *http.Request) {
	rt.extract(w, r, "tagged")
}

func (rt *Router) extract(w http.ResponseWriter, r *http.Request, view string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "INVALID", "method not allowed")
		return
	}

	filename, raw, ok := rt.readUploadFile(w, r)
	if !ok {
		return
	}
	normalize := formBool(r, "normalization")

	start := time.Now()
	var text string
	var err error
	if view == "plain" {
		text, err = rt.extractor.ExtractPlain(r.Context(), filename, bytes.NewReader(raw), normalize)
	} else {
		text, err = rt.extractor.ExtractTagged(r.Context(), filename, bytes.NewReader(raw), domain.ExtractOptions{
			Normalize: normalize,
			OCR:       formBool(r, "ocr"),
		})
	}
	if rt.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		rt.metrics.RecordExtraction(rt.service, extensionOf(filename), status, time.Since(start))
	}
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), errorCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]string{"text": text},
	})
}

func (rt *Router) readUploadFile(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID", "multipart field 'file' is required")
		return "", nil, false
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID", "read upload: "+err.Error())
		return "", nil, false
	}
	return header.Filename, raw, true
}

func formBool(r *http.Request, field string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.FormValue(field)))
	return err == nil && v
}

func extensionOf(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return strings.ToLower(filename[i+1:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the error envelope the remote extractor client
// decodes: a message prefixed with the pipeline error kind, and the
// HTTP status repeated as the numeric code.
func writeError(w http.ResponseWriter, status int, kind, detail string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": kind + ": " + detail,
			"code":    status,
		},
	})
}
