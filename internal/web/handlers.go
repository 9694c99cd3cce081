package web

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"golang-reservation-import-service/internal/importer"
	"golang-reservation-import-service/internal/parsers"
	"golang-reservation-import-service/internal/reporter"
	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Category   string `json:"category,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// ImportResponse is the JSON body of a finished import
type ImportResponse struct {
	reporter.Result
	RunID    string   `json:"run_id"`
	Schema   string   `json:"schema,omitempty"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.gateway.CountReservations(r.Context())
	if err != nil {
		s.requestLog(r).WithError(err).Error("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "reservations": count})
}

// handleImport runs one upload through a fresh import session. Optional
// form fields "schema" and "date_order" override the server defaults for
// this upload; "details=true" returns the full report.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	log := s.requestLog(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		if isTooLarge(err) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "upload exceeds the size limit"})
			return
		}
		s.writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: "no file provided"})
		return
	}
	defer file.Close()

	cfg := s.importCfg
	if v := r.FormValue("schema"); v != "" {
		kind, err := parsers.ParseSchemaKind(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: string(errors.CodeInvalidConfig)})
			return
		}
		cfg.Schema = kind
	}
	if v := r.FormValue("date_order"); v != "" {
		order, err := parsers.ParseDateOrder(v)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: string(errors.CodeInvalidConfig)})
			return
		}
		cfg.DateOrder = order
	}

	opts := append([]importer.Option{importer.WithLogger(log)}, s.opts...)
	session, err := importer.NewSession(s.gateway, &cfg, opts...)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}

	log.WithFields(logger.Fields{
		"file":   header.Filename,
		"size":   header.Size,
		"run_id": session.RunID(),
	}).Info("Import upload received")

	report, err := session.ImportReader(r.Context(), header.Filename, file)
	if err != nil {
		s.writeImportError(w, r, err)
		return
	}

	if details, _ := strconv.ParseBool(r.URL.Query().Get("details")); details {
		generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON, IncludeDetails: true})
		if err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			if err := generator.GenerateReport(report, w); err != nil {
				log.WithError(err).Error("Failed to write report")
			}
			return
		}
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Result:   report.Result(),
		RunID:    report.RunID,
		Schema:   report.Schema,
		Created:  report.Created,
		Updated:  report.Updated,
		Skipped:  report.Skipped,
		Warnings: report.Warnings,
	})
}

// writeImportError maps a batch-level import error to an HTTP status
func (s *Server) writeImportError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	if ie, ok := errors.AsImportError(err); ok {
		resp.Code = string(ie.Code)
		resp.Category = string(ie.Category)
		resp.Suggestion = ie.Suggestion

		switch ie.Category {
		case errors.CategoryFile, errors.CategoryParse:
			status = http.StatusUnprocessableEntity
		case errors.CategoryConfiguration:
			status = http.StatusBadRequest
		}
	}
	s.writeError(w, r, status, resp)
}

// writeError logs the failure and writes it as JSON
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	resp.RequestID = middleware.GetReqID(r.Context())

	entry := s.requestLog(r).WithFields(logger.Fields{
		"status": status,
		"code":   resp.Code,
	})
	if status >= http.StatusInternalServerError {
		entry.Error(resp.Error)
	} else {
		entry.Warn(resp.Error)
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}
