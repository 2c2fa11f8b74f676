package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goji "goji.io"
	"goji.io/pat"

	"github.com/edgeflux/tempagent/pkg/metrics"
	"github.com/edgeflux/tempagent/pkg/version"
)

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tempagent",
			Name:      "build_info",
			Help:      "Information about the current build of the agent",
		}, []string{"name", "version", "build_date"},
	)
)

func init() {
	metrics.MustRegister(buildInfo)
}

// Config holds the observability server's settings.
type Config struct {
	ListenAddr string
}

// Server exposes the agent's pulse and metrics endpoints. It runs beside the
// main loop and does not participate in the telemetry path.
type Server struct {
	srv    *http.Server
	logger kitlog.Logger
}

// PulseHandler is the simplest possible handler function - used to expose an
// endpoint which can be probed to verify the agent process is running and
// accepting connections.
func PulseHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ok")
}

// NewServer returns a new observability server bound to the configured
// address.
func NewServer(config *Config, logger kitlog.Logger) *Server {
	logger = kitlog.With(logger, "module", "server")

	logger.Log("listenAddr", config.ListenAddr, "msg", "creating server")

	buildInfo.WithLabelValues(version.BinaryName, version.Version, version.BuildDate)

	mux := goji.NewMux()

	mux.HandleFunc(pat.Get("/pulse"), PulseHandler)
	mux.Handle(pat.Get("/metrics"), promhttp.Handler())

	srv := &http.Server{
		Addr:    config.ListenAddr,
		Handler: mux,
	}

	return &Server{
		srv:    srv,
		logger: logger,
	}
}

// Start begins serving in the background; listen errors other than a clean
// shutdown are logged, not fatal, as the agent loop is the primary concern.
func (s *Server) Start() error {
	go func() {
		s.logger.Log("listenAddr", s.srv.Addr, "msg", "starting server")

		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Log("err", err, "msg", "server stopped")
		}
	}()

	return nil
}

// Stop shuts the server down, allowing in-flight scrapes a moment to finish.
func (s *Server) Stop() error {
	s.logger.Log("msg", "stopping server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
