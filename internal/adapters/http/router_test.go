package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/domain"
)

type fakeOrchestrator struct {
	record  domain.MetadataRecord
	err     error
	lastReq domain.ExtractRequest
}

func (f *fakeOrchestrator) Extract(_ context.Context, req domain.ExtractRequest) (domain.MetadataRecord, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

type fakeTextExtractor struct {
	plain  string
	tagged string
	err    error
}

func (f *fakeTextExtractor) ExtractPlain(_ context.Context, _ string, r io.Reader, _ bool) (string, error) {
	_, _ = io.ReadAll(r)
	return f.plain, f.err
}

func (f *fakeTextExtractor) ExtractTagged(_ context.Context, _ string, r io.Reader, _ domain.ExtractOptions) (string, error) {
	_, _ = io.ReadAll(r)
	return f.tagged, f.err
}

func multipartUpload(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "tesis.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.4 fake")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func newTestRouter(orch *fakeOrchestrator, ext *fakeTextExtractor, token string) http.Handler {
	return NewRouter(orch, ext, nil, "api", token).Handler()
}

func TestUploadReturnsMetadata(t *testing.T) {
	orch := &fakeOrchestrator{record: domain.MetadataRecord{
		"title": "Genotoxicidad en anfibios",
		"type":  "tesis",
	}}
	handler := newTestRouter(orch, &fakeTextExtractor{}, "")

	body, contentType := multipartUpload(t, map[string]string{
		"type":        "Tesis",
		"deepanalyze": "true",
	})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["title"] != "Genotoxicidad en anfibios" {
		t.Fatalf("title = %v", got["title"])
	}
	if orch.lastReq.Type != "tesis" {
		t.Fatalf("type passed to orchestrator = %q, want lowercased", orch.lastReq.Type)
	}
	if !orch.lastReq.DeepAnalyze {
		t.Fatal("deepanalyze flag not propagated")
	}
	if orch.lastReq.Filename != "tesis.pdf" {
		t.Fatalf("filename = %q", orch.lastReq.Filename)
	}
}

func TestUploadRejectsUnknownType(t *testing.T) {
	handler := newTestRouter(&fakeOrchestrator{}, &fakeTextExtractor{}, "")

	body, contentType := multipartUpload(t, map[string]string{"type": "Revista"})
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "INVALID") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestUploadMapsFormatErrors(t *testing.T) {
	orch := &fakeOrchestrator{err: domain.WrapError(domain.ErrFormat, "extract text", io.ErrUnexpectedEOF)}
	handler := newTestRouter(orch, &fakeTextExtractor{}, "")

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var got struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.HasPrefix(got.Error.Message, "FORMAT:") {
		t.Fatalf("message = %q, want FORMAT prefix", got.Error.Message)
	}
	if got.Error.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want %d", got.Error.Code, http.StatusBadRequest)
	}
}

func TestUploadRequiresBearerToken(t *testing.T) {
	handler := newTestRouter(&fakeOrchestrator{record: domain.MetadataRecord{}}, &fakeTextExtractor{}, "secret")

	body, contentType := multipartUpload(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rec.Code)
	}

	body, contentType = multipartUpload(t, nil)
	req = httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestUploadMissingFile(t *testing.T) {
	handler := newTestRouter(&fakeOrchestrator{}, &fakeTextExtractor{}, "")

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("type", "tesis"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "file") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestExtractEndpointsReturnText(t *testing.T) {
	ext := &fakeTextExtractor{plain: "texto plano", tagged: "<h1>Titulo</h1>"}
	handler := newTestRouter(&fakeOrchestrator{}, ext, "")

	for path, want := range map[string]string{
		"/extract":           "texto plano",
		"/extract-with-tags": "<h1>Titulo</h1>",
	} {
		body, contentType := multipartUpload(t, map[string]string{"normalization": "true"})
		req := httptest.NewRequest(http.MethodPost, path, body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, body %s", path, rec.Code, rec.Body.String())
		}
		var got struct {
			Data struct {
				Text string `json:"text"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("%s: decode response: %v", path, err)
		}
		if got.Data.Text != want {
			t.Fatalf("%s: text = %q, want %q", path, got.Data.Text, want)
		}
	}
}

func TestHealthzIsOpen(t *testing.T) {
	handler := newTestRouter(&fakeOrchestrator{}, &fakeTextExtractor{}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
