package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smart-parking/internal/logging"
)

type Server struct {
	httpServer *http.Server
	handler    *Handler
	events     context.Context
	stopEvents context.CancelFunc
}

func NewServer(port string, handler *Handler) *Server {
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, NewRegistry(handler)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	events, stopEvents := context.WithCancel(context.Background())
	return &Server{
		httpServer: httpServer,
		handler:    handler,
		events:     events,
		stopEvents: stopEvents,
	}
}

// NewRegistry returns a registry with the Go runtime, process and lot
// collectors. Each server gets its own so tests can build many.
func NewRegistry(handler *Handler) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newLotCollector(handler),
	)
	return reg
}

func NewRouter(handler *Handler, reg *prometheus.Registry) http.Handler {
	metrics := newHTTPMetrics(reg)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware(handler.telemetry.Tracer()))
	r.Use(LoggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Route("/api/parking-lot", func(r chi.Router) {
		r.Post("/", handler.CreateParkingLot)
		r.Post("/park", handler.ParkVehicle)
		r.Post("/leave", handler.LeaveSlot)
		r.Post("/optimize", handler.Optimize)
		r.Get("/status", handler.GetStatus)
		r.Get("/find/{plate}", handler.FindByPlate)
		r.Get("/pricing", handler.GetPricing)
		r.Get("/quote/{plate}", handler.GetQuote)
		r.Get("/queue", handler.GetQueue)
		r.Get("/events", handler.events.ServeWS)
	})

	return r
}

// Start runs the event hub and serves HTTP until Shutdown. After Shutdown
// the hub exits as soon as it starts.
func (s *Server) Start() error {
	go s.handler.events.Run(s.events)

	logging.Info(context.Background()).Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info(ctx).Msg("shutting down HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.stopEvents()
	return err
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
