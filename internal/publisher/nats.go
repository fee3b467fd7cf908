package publisher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"route-animator/internal/anim"
)

// PublisherMetrics is implemented by the metrics collector; nil disables
// instrumentation.
type PublisherMetrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
	SetConnected(connected bool)
}

// NATSPublisher streams animation frames and state transitions to NATS
// subjects, one pair per session. It implements anim.Notifier.
type NATSPublisher struct {
	nc      *nats.Conn
	metrics PublisherMetrics
	logger  *slog.Logger
}

func NewNATSPublisher(url string, m PublisherMetrics, logger *slog.Logger) (*NATSPublisher, error) {
	log := logger.With("component", "nats_publisher")
	nc, err := nats.Connect(url,
		nats.Name("route-animator"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(true)
			}
			log.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			log.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected(true)
	}
	return &NATSPublisher{nc: nc, metrics: m, logger: log}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// Frame implements anim.Notifier.
func (p *NATSPublisher) Frame(f anim.Frame) {
	p.publish(fmt.Sprintf("anim.frame.%s", subjectToken(f.SessionID)), f)
}

// StateChange implements anim.Notifier.
func (p *NATSPublisher) StateChange(c anim.StateChange) {
	p.publish(fmt.Sprintf("anim.state.%s", subjectToken(c.SessionID)), c)
}

func (p *NATSPublisher) publish(subject string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("marshal failed", "subject", subject, "error", err)
		return
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc()
		} else {
			p.metrics.PublishedInc()
		}
	}
	if err != nil {
		p.logger.Error("publish failed", "subject", subject, "error", err)
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
