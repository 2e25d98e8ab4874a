package api

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router builds the control-plane router. When webDir exists, its files
// are served at the root so the bundled control page works out of the box.
func Router(h *Handler, webDir string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/send-code", h.SendCode)
	r.Post("/auth", h.Auth)
	r.Post("/start", h.Start)
	r.Post("/stop", h.Stop)
	r.Get("/status", h.Status)
	r.Get("/config", h.Config)

	if webDir != "" {
		if _, err := os.Stat(webDir); err == nil {
			fs := http.FileServer(http.Dir(webDir))
			r.Handle("/*", fs)
		}
	}

	return r
}
