package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type pingRoutes struct{}

func (pingRoutes) Register(r chi.Router) {
	r.With(TokenAuth("t0k")).Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func TestRouterMountsRegistrars(t *testing.T) {
	router := NewRouter(RouterParams{Logger: slog.Default(), Registrars: []Registrar{pingRoutes{}}})

	cases := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"health", "/healthz", "", http.StatusOK},
		{"metrics", "/metrics", "", http.StatusOK},
		{"no token", "/ping", "", http.StatusUnauthorized},
		{"wrong token", "/ping", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "/ping", "Bearer t0k", http.StatusOK},
		{"query", "/ping?token=t0k", "", http.StatusOK},
		{"unknown", "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestTokenAuthDisabledWithoutToken(t *testing.T) {
	h := TokenAuth("")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
