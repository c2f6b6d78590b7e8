package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kichnu/iotdash/internal/device"
)

// Prefix is the path prefix of every API route.
const Prefix = "/api"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(
		requestID,
		s.accessLog,
		s.recoverPanics,
		s.cors,
		middleware.RequestSize(maxRequestBodySize),
	)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, ErrCodeMethodNotAllow, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		fail(w, ErrCodeNotFound, "route not found")
	})

	r.Route(Prefix, func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/rooms", s.handleListRooms)
		r.Get("/audit", s.handleListAudit)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/status", s.handleDevicesStatus)
		})

		r.Route("/device/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetDevice)
			r.Put("/", s.handleUpdateDevice)
			r.Delete("/", s.handleDeleteDevice)
			r.Post("/control", s.handleControlDevice)
		})
	})

	return r
}

// handleStatus reports API health and broker connectivity. The dashboard
// probes this endpoint before polling.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, device.ServerStatus{
		Status:        device.StatusOK,
		MQTTConnected: s.mqttConnected(),
	})
}
