package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dgallion1/wrnotes/internal/cookie"
	"github.com/dgallion1/wrnotes/internal/weread"
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		vErr *weread.ValidationError
		nErr *cookie.NoCredentialError
		aErr *weread.APIError
		mErr *weread.MalformedResponseError
		tErr *weread.NetworkError
	)
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.As(err, &nErr):
		return http.StatusUnauthorized
	case errors.As(err, &aErr), errors.As(err, &mErr):
		return http.StatusBadGateway
	case errors.As(err, &tErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "status", code, "error", err)
	} else {
		s.log.Warn("request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	jsonError(w, err.Error(), code)
}

func queryBool(r *http.Request, name string, fallback bool) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &weread.ValidationError{Field: name, Message: fmt.Sprintf("expected a boolean, got %q", v)}
	}
	return b, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &weread.ValidationError{Field: name, Message: fmt.Sprintf("expected an integer, got %q", v)}
	}
	return n, nil
}

// queryOptionalInt returns nil when the parameter is absent.
func queryOptionalInt(r *http.Request, name string) (*int, error) {
	if r.URL.Query().Get(name) == "" {
		return nil, nil
	}
	n, err := queryInt(r, name, 0)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
