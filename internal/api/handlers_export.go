package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/wrnotes/internal/export"
	"github.com/dgallion1/wrnotes/internal/pipeline"
	"github.com/dgallion1/wrnotes/internal/weread"
)

// handleExport renders a book's notes synchronously.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := notesRequest(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	notes, err := s.notes.BookNotes(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	doc, err := export.Render(notes, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	serveDocument(w, doc, pipeline.ContentHashHex(doc.Body))
}

type createExportRequest struct {
	BookID string `json:"book_id"`
	Format string `json:"format"`
	Style  *int   `json:"style,omitempty"`
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "export jobs unavailable", http.StatusServiceUnavailable)
		return
	}

	var body createExportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	body.BookID = strings.TrimSpace(body.BookID)
	if body.BookID == "" {
		s.fail(w, r, &weread.ValidationError{Field: "book_id", Message: "must not be empty"})
		return
	}
	format, err := export.ParseFormat(body.Format)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	job := pipeline.NewJob(body.BookID, format, body.Style)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"book_id":      job.BookID,
		"status":       pipeline.StatusQueued,
		"poll_url":     fmt.Sprintf("/api/exports/%s", job.ID),
		"download_url": fmt.Sprintf("/api/exports/%s/download", job.ID),
	})
}

func (s *Server) job(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	if s.orchestrator == nil {
		jsonError(w, "export jobs unavailable", http.StatusServiceUnavailable)
		return nil
	}
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	job := s.job(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	doc := job.Result()
	if snap.Status != pipeline.StatusCompleted || doc == nil {
		jsonError(w, fmt.Sprintf("export is %s", snap.Status), http.StatusConflict)
		return
	}
	serveDocument(w, doc, snap.ContentHash)
}

func serveDocument(w http.ResponseWriter, doc *export.Document, hash string) {
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	if hash != "" {
		w.Header().Set("ETag", `"`+hash+`"`)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(doc.Body)
}
