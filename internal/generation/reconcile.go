package generation

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"genstudio/internal/infra"
)

// Reconciler periodically re-attaches pollers for pending assets whose task
// stopped being tracked, for example after the API key was missing for a
// while.
type Reconciler struct {
	poller   *Poller
	schedule string
	cron     *cron.Cron
	logger   *infra.Logger
}

func NewReconciler(poller *Poller, schedule string, logger *infra.Logger) *Reconciler {
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Reconciler{
		poller:   poller,
		schedule: schedule,
		cron:     cron.New(),
		logger:   infra.OrDiscard(logger),
	}
}

// Start registers the job and starts the scheduler.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.RunOnce); err != nil {
		return fmt.Errorf("generation: reconcile schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.logger.Info().Str("schedule", r.schedule).Msg("reconciler started")
	return nil
}

// RunOnce re-attaches pending tasks.
func (r *Reconciler) RunOnce() {
	if n := r.poller.Reattach(); n > 0 {
		r.logger.Info().Int("reattached", n).Msg("reconciler re-attached pending tasks")
	}
}

// Stop halts the scheduler and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
	r.logger.Info().Msg("reconciler stopped")
}
