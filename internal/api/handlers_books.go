package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/wrnotes/internal/notebook"
	"github.com/dgallion1/wrnotes/internal/weread"
)

func (s *Server) handleShelf(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", notebook.DefaultShelfLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shelf, err := s.notes.Bookshelf(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shelf)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req := notebook.SearchRequest{Keyword: r.URL.Query().Get("keyword")}
	var err error
	if req.Exact, err = queryBool(r, "exact", false); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Details, err = queryBool(r, "details", true); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Max, err = queryInt(r, "max", notebook.DefaultSearchMax); err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.notes.Search(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// notesRequest reads the notes options shared by the notes and export endpoints.
func notesRequest(r *http.Request) (notebook.NotesRequest, error) {
	req := notebook.NotesRequest{BookID: chi.URLParam(r, "bookID")}
	var err error
	if req.IncludeChapters, err = queryBool(r, "chapters", true); err != nil {
		return req, err
	}
	if req.OrganizeByChapter, err = queryBool(r, "organize", true); err != nil {
		return req, err
	}
	if req.Style, err = queryOptionalInt(r, "style"); err != nil {
		return req, err
	}
	if req.Refresh, err = queryBool(r, "refresh", false); err != nil {
		return req, err
	}
	return req, nil
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) handleBestReviews(w http.ResponseWriter, r *http.Request) {
	var (
		q   weread.BestReviewsQuery
		err error
	)
	if q.Count, err = queryInt(r, "count", 10); err != nil {
		s.fail(w, r, err)
		return
	}
	if q.MaxIdx, err = queryInt(r, "max_idx", 0); err != nil {
		s.fail(w, r, err)
		return
	}
	if v := r.URL.Query().Get("synckey"); v != "" {
		if q.SyncKey, err = strconv.ParseInt(v, 10, 64); err != nil {
			s.fail(w, r, &weread.ValidationError{Field: "synckey", Message: "expected an integer"})
			return
		}
	}

	reviews, err := s.notes.BestReviews(r.Context(), chi.URLParam(r, "bookID"), q)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *Server) handleImported(w http.ResponseWriter, r *http.Request) {
	summary, err := s.notes.Imported(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		s.log.Error("highlighter request failed", "error", err)
		jsonError(w, "highlighter unavailable: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
