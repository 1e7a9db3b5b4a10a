package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one process. They live on a
// private registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetched   prometheus.Counter
	RecordsWritten prometheus.Counter
	RecordsSkipped prometheus.Counter
	Handshakes     *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	RunActive      prometheus.Gauge

	logger *slog.Logger
}

// NewMetrics creates and registers all collectors.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commentgoat_pages_fetched_total",
			Help: "Feed pages fetched",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commentgoat_records_written_total",
			Help: "Records appended to an export sink",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commentgoat_records_skipped_total",
			Help: "Records dropped because their header could not be read",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentgoat_handshakes_total",
			Help: "Vote handshakes by result",
		}, []string{"result"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commentgoat_runs_total",
			Help: "Finished runs by policy and result",
		}, []string{"policy", "result"}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commentgoat_run_active",
			Help: "Runs currently in progress",
		}),
		logger: logger.With("component", "metrics"),
	}

	m.Registry.MustRegister(
		m.PagesFetched,
		m.RecordsWritten,
		m.RecordsSkipped,
		m.Handshakes,
		m.Runs,
		m.RunActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) PageFetched()              { m.PagesFetched.Inc() }
func (m *Metrics) RecordsAppended(n int)     { m.RecordsWritten.Add(float64(n)) }
func (m *Metrics) RecordSkipped()            { m.RecordsSkipped.Inc() }
func (m *Metrics) ObserveHandshake(r string) { m.Handshakes.WithLabelValues(r).Inc() }
func (m *Metrics) RunStarted()               { m.RunActive.Inc() }

// RunFinished closes out a run started with RunStarted.
func (m *Metrics) RunFinished(policy, result string) {
	m.RunActive.Dec()
	m.Runs.WithLabelValues(policy, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// StartServer serves metrics on port until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}
