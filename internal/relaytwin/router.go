// Package relaytwin is an in-memory stand-in for the remote email relay.
// It accepts the same JSON and multipart bodies as the real service and
// supports fault injection for exercising client error handling.
package relaytwin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/vdavid/mailmate/internal/auth"
)

// SendEmailPath is the relay's send endpoint.
const SendEmailPath = "/api/send-email"

// Options configures a Handler.
type Options struct {
	APIKey string
	// MaxMemory bounds in-memory multipart parsing.
	MaxMemory int64
}

// Handler holds all twin handler state.
type Handler struct {
	store    *Store
	opts     Options
	validate *validator.Validate
}

// NewHandler creates a new twin handler.
func NewHandler(s *Store, opts Options) *Handler {
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = 32 << 20
	}
	return &Handler{store: s, opts: opts, validate: validator.New()}
}

// Routes mounts the relay API and admin extras.
func (h *Handler) Routes(r chi.Router) {
	r.With(auth.RequireAPIKey(h.opts.APIKey)).Post(SendEmailPath, h.SendEmail)

	// Admin extras (no auth required)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/submissions", h.ListSubmissions)
		r.Post("/fault", h.SetFault)
		r.Delete("/fault", h.ClearFault)
		r.Post("/reset", h.Reset)
	})
}

// NewRouter returns a router with the twin mounted.
func NewRouter(s *Store, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("MailMate relay twin is running"))
	})
	NewHandler(s, opts).Routes(r)
	return r
}
