// Package poller runs the periodic incident fetch, keeps the poll mark in a
// state store, and retains recently fetched incidents for the HTTP API.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/invisible-tech/xdr-responder/internal/config"
	"github.com/invisible-tech/xdr-responder/internal/fetch"
	"github.com/invisible-tech/xdr-responder/internal/state"
	"github.com/invisible-tech/xdr-responder/internal/types"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

// Prometheus metrics (registered once).
var (
	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xdr_poll_cycles_total",
			Help: "Incident poll cycles by result",
		},
		[]string{"result"},
	)
	incidentsFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xdr_incidents_fetched_total",
			Help: "Incidents delivered by the poller",
		},
	)
	pollMark = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "xdr_poll_mark_milliseconds",
			Help: "Modification time of the current poll mark",
		},
	)
)

func init() {
	prometheus.MustRegister(pollCycles)
	prometheus.MustRegister(incidentsFetched)
	prometheus.MustRegister(pollMark)
}

// Poller fetches new and modified incidents on an interval.
type Poller struct {
	client *xdr.Client
	store  state.Store
	log    *logrus.Logger
	cb     *gobreaker.CircuitBreaker

	cfgMu sync.RWMutex
	cfg   config.PollerConfig

	runMu sync.Mutex

	incidents   []types.PollIncident
	incidentsMu sync.RWMutex
}

// New creates a Poller. The circuit breaker opens after
// cfg.BreakerFailures consecutive failed cycles and stays open for
// cfg.BreakerCooldown.
func New(cfg config.PollerConfig, client *xdr.Client, store state.Store, log *logrus.Logger) *Poller {
	p := &Poller{client: client, store: store, log: log, cfg: cfg}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "xdr-poll",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("Poll circuit breaker state changed")
		},
	})
	return p
}

// Settings returns the current poll settings.
func (p *Poller) Settings() config.PollerConfig {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.cfg
}

// UpdateSettings swaps in reloaded settings. A new interval applies from
// the next wait; the wait already in progress is not cut short.
func (p *Poller) UpdateSettings(cfg config.PollerConfig) {
	p.cfgMu.Lock()
	p.cfg.Interval = cfg.Interval
	p.cfg.FirstFetch = cfg.FirstFetch
	p.cfg.MaxFetch = cfg.MaxFetch
	if cfg.RetentionCount > 0 {
		p.cfg.RetentionCount = cfg.RetentionCount
	}
	p.cfgMu.Unlock()
	p.log.WithFields(logrus.Fields{
		"interval": cfg.Interval, "first_fetch": cfg.FirstFetch, "max_fetch": cfg.MaxFetch,
	}).Info("Poller settings updated")
}

// Start polls immediately, then until ctx is done. Each wait is the
// current interval with 10% jitter, read fresh every cycle.
func (p *Poller) Start(ctx context.Context) {
	for {
		if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.log.WithError(err).Error("Incident poll failed")
		}
		t := time.NewTimer(wait.Jitter(p.Settings().Interval, 0.1))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// RunOnce performs one poll cycle: it loads the mark, fetches, drops
// incidents already delivered at the mark, and saves the new mark. The
// mark is left untouched when the cycle fails.
func (p *Poller) RunOnce(ctx context.Context) ([]types.PollIncident, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.poll(ctx)
	})
	if err != nil {
		result := "error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result = "skipped"
		}
		pollCycles.WithLabelValues(result).Inc()
		return nil, err
	}
	pollCycles.WithLabelValues("ok").Inc()
	return out.([]types.PollIncident), nil
}

func (p *Poller) poll(ctx context.Context) ([]types.PollIncident, error) {
	cfg := p.Settings()
	last, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load poll mark: %w", err)
	}
	next, fetched, err := fetch.FetchIncidents(ctx, p.client, cfg.FirstFetch, last, cfg.MaxFetch)
	if err != nil {
		return nil, err
	}
	fresh := Unseen(last, fetched)
	if err := p.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save poll mark: %w", err)
	}

	p.retain(fresh, cfg.RetentionCount)
	incidentsFetched.Add(float64(len(fresh)))
	pollMark.Set(float64(next.Time))
	p.log.WithFields(logrus.Fields{
		"fetched": len(fetched), "new": len(fresh), "mark": next.Time, "ids_at_mark": len(next.IDs),
	}).Info("Incident poll completed")
	return fresh, nil
}

// Unseen drops incidents delivered by an earlier cycle: those modified at
// exactly the last mark whose id is recorded for it.
func Unseen(last types.LastRun, incidents []types.PollIncident) []types.PollIncident {
	seen := sets.New[string](last.IDs...)
	out := make([]types.PollIncident, 0, len(incidents))
	for _, inc := range incidents {
		if inc.ModificationTime == last.Time && seen.Has(inc.IncidentID) {
			continue
		}
		out = append(out, inc)
	}
	return out
}

func (p *Poller) retain(incidents []types.PollIncident, limit int) {
	if len(incidents) == 0 {
		return
	}
	p.incidentsMu.Lock()
	defer p.incidentsMu.Unlock()
	p.incidents = append(p.incidents, incidents...)
	if limit > 0 && len(p.incidents) > limit {
		p.incidents = p.incidents[len(p.incidents)-limit:]
	}
}

// Incidents returns the most recent delivered incidents, up to limit.
func (p *Poller) Incidents(limit int) []types.PollIncident {
	p.incidentsMu.RLock()
	defer p.incidentsMu.RUnlock()
	n := len(p.incidents)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.PollIncident, limit)
	copy(out, p.incidents[n-limit:])
	return out
}

// Mark returns the stored poll mark.
func (p *Poller) Mark(ctx context.Context) (types.LastRun, error) {
	return p.store.Load(ctx)
}

// State returns the circuit breaker state name.
func (p *Poller) State() string {
	return p.cb.State().String()
}
