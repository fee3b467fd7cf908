package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsRemoved prometheus.Counter

	FramesTicked prometheus.Counter
	TickDuration prometheus.Histogram
	StartsDenied prometheus.Counter

	Published       prometheus.Counter
	PublishErrs     prometheus.Counter
	PublishDuration prometheus.Histogram
	NATSConnected   prometheus.Gauge

	CacheHits      *prometheus.CounterVec // tier label: memory|persistent
	CacheMisses    prometheus.Counter
	ProviderErrors prometheus.Counter

	FrameInterval prometheus.Gauge // seconds
}

func NewCollector(frameInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_active_sessions",
			Help: "Number of live animation sessions.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_sessions_created_total",
			Help: "Total animation sessions created.",
		}),
		SessionsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_sessions_removed_total",
			Help: "Total animation sessions removed.",
		}),
		FramesTicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_frames_ticked_total",
			Help: "Total animation frames advanced.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_tick_duration_seconds",
			Help:    "Duration of one frame tick computation.",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15),
		}),
		StartsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_starts_denied_total",
			Help: "Animation starts denied by the rate-limit predicate.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		PublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animator_directions_cache_hits_total",
			Help: "Directions cache hits by tier.",
		}, []string{"tier"}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_directions_cache_misses_total",
			Help: "Directions cache misses across both tiers.",
		}),
		ProviderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_provider_errors_total",
			Help: "Directions provider resolution failures.",
		}),
		FrameInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_frame_interval_seconds",
			Help: "Configured frame interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.ActiveSessions, c.SessionsCreated, c.SessionsRemoved,
		c.FramesTicked, c.TickDuration, c.StartsDenied,
		c.Published, c.PublishErrs, c.PublishDuration, c.NATSConnected,
		c.CacheHits, c.CacheMisses, c.ProviderErrors,
		c.FrameInterval,
	)

	c.FrameInterval.Set(frameInterval.Seconds())
	return c
}

// Adapter methods satisfying anim.LoopMetrics.

func (c *Collector) SessionOpened() {
	c.SessionsCreated.Inc()
	c.ActiveSessions.Inc()
}

func (c *Collector) SessionClosed() {
	c.SessionsRemoved.Inc()
	c.ActiveSessions.Dec()
}

func (c *Collector) FrameTicked(d time.Duration) {
	c.FramesTicked.Inc()
	c.TickDuration.Observe(d.Seconds())
}

func (c *Collector) StartDenied() { c.StartsDenied.Inc() }

// Adapter methods satisfying publisher.PublisherMetrics.

func (c *Collector) PublishedInc()                  { c.Published.Inc() }
func (c *Collector) PublishErrInc()                 { c.PublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) SetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// Adapter methods satisfying provider.ResolverMetrics.

func (c *Collector) CacheHit(tier string) { c.CacheHits.WithLabelValues(tier).Inc() }
func (c *Collector) CacheMiss()           { c.CacheMisses.Inc() }
func (c *Collector) ProviderErrorInc()    { c.ProviderErrors.Inc() }

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics listening", "addr", addr)
	return srv
}
