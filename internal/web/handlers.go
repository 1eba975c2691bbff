package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/IgorDroma/reports-admin/internal/core"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// datasetInfo is the wire form of a dataset definition.
type datasetInfo struct {
	Key           string `json:"key"`
	Label         string `json:"label"`
	Format        string `json:"format"`
	DefaultSource string `json:"defaultSource"`
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	defs := core.Datasets()
	out := make([]datasetInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, datasetInfo{
			Key:           d.Key,
			Label:         d.Label,
			Format:        string(d.Format),
			DefaultSource: d.DefaultSource,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleImport accepts a multipart upload and runs it through the import
// pipeline. The "file" form field may repeat; related files in one request
// land in one batch.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var files []core.SourceFile
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				s.respondError(w, r, err, http.StatusBadRequest)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				s.respondError(w, r, err, http.StatusBadRequest)
				return
			}
			files = append(files, core.SourceFile{Name: fh.Filename, Data: data})
		}
	}

	result, err := s.service.Import(r.Context(), core.ImportRequest{
		Dataset: dataset,
		Source:  r.FormValue("source"),
		Files:   files,
	})
	if err != nil {
		if result != nil {
			// Records up to the failed chunk are in place and the batch
			// is in the ledger, so the partial accounting goes back to
			// the caller alongside the error.
			writeJSON(w, http.StatusInternalServerError, result)
			return
		}
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	batches, err := s.service.ListBatches(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if batches == nil {
		batches = []core.ImportBatch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchIDParam(w, r)
	if !ok {
		return
	}

	batch, err := s.service.GetBatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.respondError(w, r, err, http.StatusNotFound)
			return
		}
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

// handleRollback removes a batch's records and its ledger entry. Deleting
// an unknown batch reports found=false rather than an error, so retrying
// a rollback is harmless.
func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	id, ok := s.batchIDParam(w, r)
	if !ok {
		return
	}

	result, err := s.service.Rollback(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) batchIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "batchID"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// respondError logs the technical error with the request id and returns a
// JSON error body.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, statusCode, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
