package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/metrics"
	"github.com/MrSnakeDoc/npdstracker/internal/probe"
	"github.com/MrSnakeDoc/npdstracker/internal/registry"
	"github.com/MrSnakeDoc/npdstracker/internal/state"
)

// DefaultPeriodUnit is the unit of the validateTime setting.
const DefaultPeriodUnit = time.Minute

// Prober health checks one registered server.
type Prober interface {
	Probe(ctx context.Context, host string, port int) (probe.Result, error)
}

// Federator imports SHARE records from peer trackers into reg.
type Federator interface {
	Merge(ctx context.Context, reg *registry.Registry, peers []domain.PeerTracker) int
}

// Saver persists the registry.
type Saver interface {
	Save(ctx context.Context)
}

// Validator periodically probes the registered servers, evicts the ones that
// failed too often and refreshes the records shared by peer trackers.
//
// Passes run one at a time on a single goroutine. The timer is re-armed when
// a pass ends, so a slow pass pushes the next one back by its own duration.
type Validator struct {
	state         *state.TrackerState
	prober        Prober
	federation    Federator
	saver         Saver
	logger        logger.Logger
	unit          time.Duration
	now           func() time.Time
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	wg            sync.WaitGroup
}

// NewValidator creates a validator. unit is the duration of one period step
// (DefaultPeriodUnit when zero); tests shrink it.
func NewValidator(
	st *state.TrackerState,
	prober Prober,
	federation Federator,
	saver Saver,
	log logger.Logger,
	unit time.Duration,
) *Validator {
	if unit <= 0 {
		unit = DefaultPeriodUnit
	}

	return &Validator{
		state:         st,
		prober:        prober,
		federation:    federation,
		saver:         saver,
		logger:        log,
		unit:          unit,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start runs a first pass right away and then one pass per period until ctx
// is done or Stop is called.
func (v *Validator) Start(ctx context.Context) {
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()

		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-timer.C:
			case <-v.manualTrigger:
				v.logger.Info("manual validation triggered")
			case <-v.stopCh:
				return
			case <-ctx.Done():
				return
			}

			v.RunPass(ctx)

			next := v.period()
			v.logger.Debug("next validation scheduled", logger.Duration("in", next))
			timer.Reset(next)
		}
	}()
}

// Stop ends the loop and waits for a running pass to return.
func (v *Validator) Stop() {
	v.stopOnce.Do(func() { close(v.stopCh) })
	v.wg.Wait()
}

// Trigger queues a pass to run as soon as the current one, if any, is done.
// It reports false when a pass is already queued.
func (v *Validator) Trigger() bool {
	select {
	case v.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (v *Validator) period() time.Duration {
	return time.Duration(v.state.Settings.ValidateTime()) * v.unit
}

// RunPass performs one validation pass.
func (v *Validator) RunPass(ctx context.Context) {
	start := v.now()
	v.state.BeginValidation(start)
	v.logger.Info("starting validation of records")

	for _, rec := range v.state.Registry.Snapshot() {
		if rec.Federated() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		v.check(ctx, rec)
	}

	tries := v.state.Settings.ValidateTries()
	evicted := v.state.Registry.EvictWhere(func(r domain.HostRecord) bool {
		return r.Federated() || r.Status.Failures() > tries
	})
	purged := 0
	for _, r := range evicted {
		if r.Federated() {
			purged++
			continue
		}
		metrics.EvictionsTotal.WithLabelValues("failures").Inc()
		v.logger.Info(r.Name+" removed. Too many failed connections.",
			logger.String("name", r.Name),
			logger.Int("failures", r.Status.Failures()))
	}
	if purged > 0 {
		metrics.EvictionsTotal.WithLabelValues("federated").Add(float64(purged))
	}

	imported := 0
	if peers := v.state.Peers.Snapshot(); len(peers) > 0 && ctx.Err() == nil {
		imported = v.federation.Merge(ctx, v.state.Registry, peers)
	}

	v.saver.Save(context.WithoutCancel(ctx))

	end := v.now()
	v.state.EndValidation(end)
	metrics.ValidationPassDuration.Observe(end.Sub(start).Seconds())

	v.logger.Info("ending validation of records",
		logger.Int("evicted", len(evicted)-purged),
		logger.Int("federated_imported", imported),
		logger.Duration("duration", end.Sub(start)))
}

func (v *Validator) check(ctx context.Context, rec domain.HostRecord) {
	v.logger.Debug("checking "+rec.Name, logger.String("name", rec.Name))

	res, err := v.prober.Probe(ctx, rec.Host, rec.Port)

	var found bool
	if res.Up {
		at := domain.FormatTime(v.now())
		found = v.state.Registry.UpdateByName(rec.Name, func(r *domain.HostRecord) {
			r.Status = domain.Healthy()
			r.LastValidation = at
		})
		v.logger.Info(rec.Name+" is up", logger.String("name", rec.Name))
	} else {
		found = v.state.Registry.UpdateByName(rec.Name, func(r *domain.HostRecord) {
			r.Status = r.Status.Fail()
		})
		fields := []logger.Field{logger.String("name", rec.Name), logger.String("reason", res.Reason)}
		if err != nil {
			fields = append(fields, logger.Error(err))
		}
		v.logger.Info(rec.Name+" is down", fields...)
	}

	if !found {
		v.logger.Debug("record removed while being checked", logger.String("name", rec.Name))
	}
}
