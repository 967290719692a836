package persist

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/metrics"
	"github.com/MrSnakeDoc/npdstracker/internal/registry"
)

// Sink stores the command log lines somewhere. Save replaces whatever the
// sink held before.
type Sink interface {
	Name() string
	Save(ctx context.Context, lines []string) error
}

// Persister writes the locally owned records of a registry to its sinks.
type Persister struct {
	mu     sync.Mutex // serializes saves so sinks see them in order
	reg    *registry.Registry
	sinks  []Sink
	logger logger.Logger
}

// New creates a Persister for reg. Sinks are written in the given order.
func New(reg *registry.Registry, log logger.Logger, sinks ...Sink) *Persister {
	return &Persister{
		reg:    reg,
		sinks:  sinks,
		logger: log,
	}
}

// Save snapshots the registry and writes it to every sink. Failures are
// logged and counted; they never reach the caller.
func (p *Persister) Save(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	recs := p.reg.Snapshot()
	lines := Lines(recs)

	local := len(lines)
	metrics.RegisteredHosts.WithLabelValues(metrics.OriginLocal).Set(float64(local))
	metrics.RegisteredHosts.WithLabelValues(metrics.OriginFederated).Set(float64(len(recs) - local))

	for _, s := range p.sinks {
		if err := s.Save(ctx, lines); err != nil {
			metrics.PersistErrorsTotal.WithLabelValues(s.Name()).Inc()
			p.logger.Error("failed to save command log",
				logger.String("sink", s.Name()),
				logger.Error(err))
			continue
		}
		p.logger.Debug("command log saved",
			logger.String("sink", s.Name()),
			logger.Int("records", local))
	}
}

// Lines renders the replayable REGUP commands for recs, skipping federated
// records.
func Lines(recs []domain.HostRecord) []string {
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Federated() {
			continue
		}
		lines = append(lines, "REGUP "+r.Address()+" "+r.Description)
	}
	return lines
}
