// Package api exposes the running session over HTTP so scripts and
// dashboards can inspect device state and adjust live settings.
package api

import (
	"encoding/json"
	"net/http"

	"codeberg.org/okkola/labdaq/internal/errors"
	"codeberg.org/okkola/labdaq/internal/logger"
	"codeberg.org/okkola/labdaq/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Controller is the slice of the session surface the API serves.
type Controller interface {
	ID() string
	DeviceStates() map[string]session.WorkerState
	Settings(deviceID string) (session.DeviceSettings, error)
	UpdateSettings(deviceID string, settings session.DeviceSettings) error
	Pause(deviceID string) error
	Resume(deviceID string) error
}

// NewRouter builds the HTTP handler for one running session.
func NewRouter(c Controller) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessionStatus(c))
		r.Route("/devices/{id}", func(r chi.Router) {
			r.Get("/settings", getSettings(c))
			r.Put("/settings", putSettings(c))
			r.Post("/pause", pauseDevice(c))
			r.Post("/resume", resumeDevice(c))
		})
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func sessionStatus(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		states := c.DeviceStates()
		devices := make(map[string]string, len(states))
		for id, state := range states {
			devices[id] = state.String()
		}

		respond(w, http.StatusOK, struct {
			ID      string            `json:"id"`
			Devices map[string]string `json:"devices"`
		}{
			ID:      c.ID(),
			Devices: devices,
		})
	}
}

func getSettings(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := c.Settings(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, settings)
	}
}

func putSettings(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var settings session.DeviceSettings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"error": "malformed settings body"})
			return
		}

		if err := c.UpdateSettings(chi.URLParam(r, "id"), settings); err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, settings)
	}
}

func pauseDevice(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Pause(chi.URLParam(r, "id")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resumeDevice(c Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := c.Resume(chi.URLParam(r, "id")); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Failed to encode API response")
	}
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.HasCode(err, session.ErrUnknownDevice):
		status = http.StatusNotFound
	case errors.HasCode(err, session.ErrConfigInvalid):
		status = http.StatusBadRequest
	}

	respond(w, status, map[string]string{"error": err.Error()})
}
