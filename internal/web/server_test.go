package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang-reservation-import-service/internal/importer"
	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/logger"
)

const pendingCSV = "Código de Confirmação,Hóspede,Data da reserva,Data de início,Data de término,Noites,Valor,Taxa de serviço,Taxa de limpeza,Ganhos brutos,Impostos de ocupação\n" +
	`,Maria Silva,01/03/2024,10/03/2024,15/03/2024,5,"R$ 1.000,00",,,,` + "\n"

func newTestServer(t *testing.T, cfg *Config) (*Server, *store.MemoryGateway) {
	t.Helper()

	gw := store.NewMemoryGateway()
	importCfg := importer.DefaultConfig()
	importCfg.Location = time.UTC

	fixed := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	srv, err := NewServer(cfg, gw, importCfg, logger.NewDiscardLogger(),
		importer.WithClock(importer.ClockFunc(func() time.Time { return fixed })),
		importer.WithLogger(logger.NewDiscardLogger()),
	)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, gw
}

func uploadRequest(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestImportUpload(t *testing.T) {
	srv, gw := newTestServer(t, nil)

	rec := serve(srv, uploadRequest(t, "/imports", "pending.csv", pendingCSV, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var resp ImportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !resp.Success || resp.Imported != 1 || resp.Created != 1 || len(resp.Errors) != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.RunID == "" || resp.Schema != "pending" {
		t.Errorf("expected run id and pending schema, got %q and %q", resp.RunID, resp.Schema)
	}

	r, err := gw.FindReservationByCode(context.Background(), "AUTO000001")
	if err != nil {
		t.Fatalf("reservation not stored: %v", err)
	}
	if r.Status != models.StatusCompleted {
		t.Errorf("expected completed stay, got %s", r.Status)
	}

	rec = serve(srv, uploadRequest(t, "/imports", "pending.csv", pendingCSV, nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Created != 0 || resp.Updated != 1 {
		t.Errorf("expected re-upload to update, got created=%d updated=%d", resp.Created, resp.Updated)
	}
}

func TestImportUploadEmptyFile(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := serve(srv, uploadRequest(t, "/imports", "empty.csv", "", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["success"] != true || body["imported"] != float64(0) {
		t.Errorf("expected success with zero imported, got %v", body)
	}
	if errs, ok := body["errors"].([]interface{}); !ok || len(errs) != 0 {
		t.Errorf("expected empty errors array, got %v", body["errors"])
	}
}

func TestImportUploadRowErrors(t *testing.T) {
	srv, gw := newTestServer(t, nil)
	content := strings.Replace(pendingCSV, "Maria Silva", "", 1)

	rec := serve(srv, uploadRequest(t, "/imports", "bad.csv", content, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("row errors should not fail the request, got %d", rec.Code)
	}

	var resp ImportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if resp.Success || len(resp.Errors) != 1 {
		t.Errorf("expected one row error, got %+v", resp)
	}
	if n, _ := gw.CountReservations(context.Background()); n != 0 {
		t.Errorf("expected no reservation, got %d", n)
	}
}

func TestImportUploadDetails(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := serve(srv, uploadRequest(t, "/imports?details=true", "pending.csv", pendingCSV, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, want := range []string{`"rows"`, `"warnings"`, `"summary"`} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("expected detailed report to contain %s\n%s", want, rec.Body.String())
		}
	}
}

func TestImportUploadFailures(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		filename string
		content  string
		fields   map[string]string
		status   int
		code     string
	}{
		{
			name:   "missing file",
			status: http.StatusBadRequest,
		},
		{
			name:     "unknown layout",
			filename: "odd.csv",
			content:  "a,b\n1,2\n",
			status:   http.StatusUnprocessableEntity,
			code:     "unknown_schema",
		},
		{
			name:     "schema override without its columns",
			filename: "pending.csv",
			content:  pendingCSV,
			fields:   map[string]string{"schema": "historical"},
			status:   http.StatusUnprocessableEntity,
			code:     "missing_column",
		},
		{
			name:     "invalid schema override",
			filename: "pending.csv",
			content:  pendingCSV,
			fields:   map[string]string{"schema": "xml"},
			status:   http.StatusBadRequest,
			code:     "invalid_config",
		},
		{
			name:     "invalid date order",
			filename: "pending.csv",
			content:  pendingCSV,
			fields:   map[string]string{"date_order": "YMD"},
			status:   http.StatusBadRequest,
			code:     "invalid_config",
		},
		{
			name:     "too large",
			cfg:      &Config{Addr: ":0", MaxUploadBytes: 64},
			filename: "pending.csv",
			content:  strings.Repeat(pendingCSV, 4),
			status:   http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.cfg)

			rec := serve(srv, uploadRequest(t, "/imports", tt.filename, tt.content, tt.fields))
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON error: %v", err)
			}
			if resp.Error == "" {
				t.Error("expected error message")
			}
			if tt.code != "" && resp.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, resp.Code)
			}
			if resp.RequestID == "" {
				t.Error("expected request id in error response")
			}
		})
	}
}

func TestNotMultipart(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/imports", strings.NewReader(pendingCSV))
	req.Header.Set("Content-Type", "text/csv")
	if rec := serve(srv, req); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/imports", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /imports, got %d", rec.Code)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", *DefaultConfig(), false},
		{"empty addr", Config{MaxUploadBytes: 1}, true},
		{"zero upload limit", Config{Addr: ":8080"}, true},
		{"negative timeout", Config{Addr: ":8080", MaxUploadBytes: 1, RequestTimeout: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewServer(nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil gateway")
	}
}
