package pipeline

import (
	"context"
	"log/slog"

	"github.com/dgallion1/wrnotes/internal/export"
	"github.com/dgallion1/wrnotes/internal/notebook"
)

// Worker renders a single export job.
type Worker struct {
	notes NotesSource
	log   *slog.Logger
}

func NewWorker(notes NotesSource, log *slog.Logger) *Worker {
	return &Worker{notes: notes, log: log}
}

// Process fetches the book's notes organized by chapter and renders them.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "book_id", job.BookID, "format", job.Format)

	job.SetStatus(StatusFetching, "fetching")
	notes, err := w.notes.BookNotes(ctx, notebook.NotesRequest{
		BookID:            job.BookID,
		IncludeChapters:   true,
		OrganizeByChapter: true,
		Style:             job.Style,
	})
	if err != nil {
		log.Error("fetch notes failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "fetching")
		return
	}
	job.SetCounts(notes.TotalHighlights, notes.TotalNotes)

	job.SetStatus(StatusRendering, "rendering")
	doc, err := export.Render(notes, job.Format)
	if err != nil {
		log.Error("render failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "rendering")
		return
	}
	job.SetResult(doc)
	job.SetStatus(StatusCompleted, "done")
	log.Info("export complete", "bytes", len(doc.Body), "filename", doc.Filename)
}
