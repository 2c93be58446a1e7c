// ABOUTME: Prometheus metrics for the playback pipeline
// ABOUTME: Tracks pool usage, output activity and song starts on /metrics
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Resonate-Protocol/playd/internal/player"
	"github.com/Resonate-Protocol/playd/pkg/audio/chunk"
	"github.com/Resonate-Protocol/playd/pkg/audio/output"
)

// Metrics owns a registry with the daemon's collectors
type Metrics struct {
	registry *prometheus.Registry

	bytesPlayed    *prometheus.CounterVec
	outputFailures *prometheus.CounterVec
	songsStarted   prometheus.Counter
	songsFailed    prometheus.Counter
}

// New registers the collectors. The pool gauges read pool on every scrape.
func New(pool *chunk.Pool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		bytesPlayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playd",
			Name:      "output_bytes_played_total",
			Help:      "Bytes handed to each output device.",
		}, []string{"output"}),
		outputFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "playd",
			Name:      "output_failures_total",
			Help:      "Times an output failed and was closed.",
		}, []string{"output"}),
		songsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playd",
			Name:      "songs_started_total",
			Help:      "Songs that started playing.",
		}),
		songsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "playd",
			Name:      "songs_failed_total",
			Help:      "Songs skipped because they could not be decoded.",
		}),
	}

	m.registry.MustRegister(
		m.bytesPlayed,
		m.outputFailures,
		m.songsStarted,
		m.songsFailed,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "playd",
			Name:      "buffer_chunks",
			Help:      "Capacity of the chunk pool.",
		}, func() float64 { return float64(pool.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "playd",
			Name:      "buffer_chunks_in_use",
			Help:      "Chunks currently allocated from the pool.",
		}, func() float64 { return float64(pool.InUse()) }),
	)
	return m
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// OutputHooks returns hooks that count output activity
func (m *Metrics) OutputHooks() output.Hooks {
	return output.Hooks{
		Played: func(name string, bytes int) {
			m.bytesPlayed.WithLabelValues(name).Add(float64(bytes))
		},
		Failed: func(name string) {
			m.outputFailures.WithLabelValues(name).Inc()
		},
	}
}

// PlayerHooks wraps next so that song starts and failures are counted
func (m *Metrics) PlayerHooks(next player.Hooks) player.Hooks {
	return player.Hooks{
		SongStarted: func(path string) {
			m.songsStarted.Inc()
			if next.SongStarted != nil {
				next.SongStarted(path)
			}
		},
		SongFailed: func(path string, err error) {
			m.songsFailed.Inc()
			if next.SongFailed != nil {
				next.SongFailed(path, err)
			}
		},
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
