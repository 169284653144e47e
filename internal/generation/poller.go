package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/library"
	"genstudio/internal/providers/gateway"
)

// StatusClient fetches task status documents.
type StatusClient interface {
	GetJSON(ctx context.Context, path string) (gateway.Document, error)
}

// CredentialChecker reports whether an API key is configured.
type CredentialChecker interface {
	HasCredentials() bool
}

// PollPolicy bounds how a task reacts to transport errors. A zero
// MaxConsecutiveErrors retries forever.
type PollPolicy struct {
	MaxConsecutiveErrors int
	BackoffFactor        float64
	MaxInterval          time.Duration
}

// PolicyFromConfig reads the poll policy settings.
func PolicyFromConfig(cfg *infra.Config) PollPolicy {
	return PollPolicy{
		MaxConsecutiveErrors: cfg.PollMaxErrors,
		BackoffFactor:        cfg.PollBackoffFactor,
		MaxInterval:          cfg.PollMaxInterval,
	}
}

func (p PollPolicy) exhausted(errs int) bool {
	return p.MaxConsecutiveErrors > 0 && errs >= p.MaxConsecutiveErrors
}

// delay returns the wait before the next request after errs consecutive
// transport errors.
func (p PollPolicy) delay(base time.Duration, errs int) time.Duration {
	if errs == 0 || p.BackoffFactor <= 1 {
		return base
	}
	d := time.Duration(float64(base) * math.Pow(p.BackoffFactor, float64(errs)))
	if p.MaxInterval > 0 && (d > p.MaxInterval || d <= 0) {
		return p.MaxInterval
	}
	return d
}

type task struct {
	assetID string
	family  string
	cancel  context.CancelFunc
}

// Poller runs one polling goroutine per provider task. Tasks are registered by
// task id so deleting an asset stops its poller.
type Poller struct {
	ctx      context.Context
	client   StatusClient
	library  *library.Library
	labels   Labels
	policy   PollPolicy
	logger   *infra.Logger
	now      func() time.Time
	interval func(shape) time.Duration

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

func WithPolicy(policy PollPolicy) PollerOption {
	return func(p *Poller) { p.policy = policy }
}

func WithLabels(labels Labels) PollerOption {
	return func(p *Poller) { p.labels = labels }
}

func WithPollerLogger(logger *infra.Logger) PollerOption {
	return func(p *Poller) { p.logger = infra.OrDiscard(logger) }
}

func WithPollerClock(now func() time.Time) PollerOption {
	return func(p *Poller) { p.now = now }
}

// WithInterval replaces every family's interval.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) { p.interval = func(shape) time.Duration { return d } }
}

// NewPoller builds a poller whose tasks live until ctx is done.
func NewPoller(ctx context.Context, client StatusClient, lib *library.Library, opts ...PollerOption) *Poller {
	p := &Poller{
		ctx:      ctx,
		client:   client,
		library:  lib,
		labels:   NewLabels(""),
		logger:   infra.DiscardLogger(),
		now:      time.Now,
		interval: func(s shape) time.Duration { return s.interval },
		tasks:    make(map[string]*task),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Track starts polling the asset's task. It reports false when the asset has
// no task, is terminal, has an unknown family, or is already tracked.
func (p *Poller) Track(asset domain.GeneratedAsset) bool {
	if asset.TaskID == "" || asset.Status.Terminal() {
		return false
	}
	family := domain.InferFamily(asset)
	sh, err := resolveShape(family)
	if err != nil {
		p.logger.Warn().Err(err).Str("asset_id", asset.ID).Msg("poller: cannot track asset")
		return false
	}

	p.mu.Lock()
	if p.ctx.Err() != nil {
		p.mu.Unlock()
		return false
	}
	if _, running := p.tasks[asset.TaskID]; running {
		p.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(p.ctx)
	t := &task{assetID: asset.ID, family: family, cancel: cancel}
	p.tasks[asset.TaskID] = t
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer p.release(asset.TaskID, t)
		p.follow(ctx, sh, asset)
	}()
	p.logger.Debug().Str("asset_id", asset.ID).Str("task_id", asset.TaskID).Str("family", family).Msg("poller: tracking")
	return true
}

// Cancel stops the task's poller. It reports whether one was running.
func (p *Poller) Cancel(taskID string) bool {
	p.mu.Lock()
	t, ok := p.tasks[taskID]
	if ok {
		delete(p.tasks, taskID)
	}
	p.mu.Unlock()
	if ok {
		t.cancel()
		p.logger.Debug().Str("task_id", taskID).Str("asset_id", t.assetID).Msg("poller: cancelled")
	}
	return ok
}

// Tracking reports whether taskID has a running poller.
func (p *Poller) Tracking(taskID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[taskID]
	return ok
}

// Active returns the number of running pollers.
func (p *Poller) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tasks)
}

// Wait blocks until every running poller has stopped.
func (p *Poller) Wait() {
	p.wg.Wait()
}

// ResumeReport summarizes a restart pass.
type ResumeReport struct {
	Reattached  int
	Interrupted int
}

// ResumePending runs once after startup. Non-terminal assets with a task id
// are polled again; those without one never reached the provider and are
// failed as interrupted.
func (p *Poller) ResumePending(ctx context.Context) ResumeReport {
	var report ResumeReport
	for _, asset := range p.library.Pending() {
		if asset.TaskID != "" {
			continue
		}
		label := p.labelsFor(asset).Text(LabelInterrupted)
		if _, ok := p.library.Update(ctx, asset.ID, func(a *domain.GeneratedAsset) bool {
			return a.TaskID == "" && a.Fail(label)
		}); ok {
			report.Interrupted++
		}
	}
	report.Reattached = p.Reattach()
	p.logger.Info().Int("reattached", report.Reattached).Int("interrupted", report.Interrupted).Msg("poller: resumed pending assets")
	return report
}

// Reattach tracks every pending asset with a task id that has no running
// poller. It does nothing while no credential is configured.
func (p *Poller) Reattach() int {
	if hc, ok := p.client.(CredentialChecker); ok && !hc.HasCredentials() {
		return 0
	}
	n := 0
	for _, asset := range p.library.Pending() {
		if p.Track(asset) {
			n++
		}
	}
	return n
}

// Await polls a task that has no asset, such as a lyrics job, until it ends.
// A provider failure is returned as a *domain.SubmissionError.
func (p *Poller) Await(ctx context.Context, family, taskID string) (Outcome, error) {
	sh, err := resolveShape(family)
	if err != nil {
		return Outcome{}, err
	}
	var final Outcome
	err = p.loop(ctx, sh, taskID, func(out Outcome) bool {
		if out.Terminal() {
			final = out
			return true
		}
		return false
	})
	if err != nil {
		return Outcome{}, err
	}
	if final.Failed() {
		msg := final.Message
		if msg == "" {
			msg = p.labels.Text(sh.failFallback)
		}
		return final, &domain.SubmissionError{Message: msg}
	}
	return final, nil
}

// labelsFor renders in the locale the asset was requested in, if any.
func (p *Poller) labelsFor(asset domain.GeneratedAsset) Labels {
	if asset.Config != nil && asset.Config.Locale != "" {
		return NewLabels(asset.Config.Locale)
	}
	return p.labels
}

func (p *Poller) release(taskID string, t *task) {
	p.mu.Lock()
	if current, ok := p.tasks[taskID]; ok && current == t {
		delete(p.tasks, taskID)
	}
	p.mu.Unlock()
	t.cancel()
}

// follow polls until the asset is terminal, deleted, or the task is stopped.
func (p *Poller) follow(ctx context.Context, sh shape, asset domain.GeneratedAsset) {
	log := p.logger.With().Str("asset_id", asset.ID).Str("task_id", asset.TaskID).Str("family", sh.name).Logger()
	err := p.loop(ctx, sh, asset.TaskID, func(out Outcome) bool {
		return p.apply(ctx, asset.ID, sh, out)
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, domain.ErrAuthMissing):
		log.Warn().Msg("poller: api key missing, task detached")
	case errors.Is(err, domain.ErrPollingAbandoned):
		label := p.labelsFor(asset).Text(LabelPollingAbandoned)
		p.library.Update(context.WithoutCancel(ctx), asset.ID, func(a *domain.GeneratedAsset) bool {
			return a.Fail(label)
		})
		log.Error().Err(err).Msg("poller: task abandoned")
	default:
		log.Warn().Err(err).Msg("poller: stopped")
	}
}

// apply folds one outcome into the asset and reports whether polling is over.
func (p *Poller) apply(ctx context.Context, assetID string, sh shape, out Outcome) bool {
	ctx = context.WithoutCancel(ctx)
	current, ok := p.library.Get(assetID)
	if !ok || current.Status.Terminal() {
		return true
	}
	switch {
	case out.Succeeded():
		if sh.needsLocator && out.Locator == "" {
			label := p.labelsFor(current).Text(out.EmptyLabel)
			p.library.Update(ctx, assetID, func(a *domain.GeneratedAsset) bool { return a.Fail(label) })
			return true
		}
		label := Elapsed(current.CreatedAt(), p.now())
		p.library.Update(ctx, assetID, func(a *domain.GeneratedAsset) bool {
			if !a.Complete(out.Locator, label) {
				return false
			}
			if out.CoverURL != "" {
				a.CoverURL = out.CoverURL
			}
			if out.Title != "" {
				a.Title = out.Title
			}
			if out.Prompt != "" {
				a.Prompt = out.Prompt
			}
			return true
		})
		return true
	case out.Failed():
		label := out.Message
		if label == "" {
			label = p.labelsFor(current).Text(sh.failFallback)
		}
		p.library.Update(ctx, assetID, func(a *domain.GeneratedAsset) bool { return a.Fail(label) })
		return true
	case out.state == stateActive:
		p.library.Update(ctx, assetID, func(a *domain.GeneratedAsset) bool { return a.MarkProcessing() })
	}
	return false
}

// loop issues one request per tick, never overlapping, until handle reports
// completion or the context ends.
func (p *Poller) loop(ctx context.Context, sh shape, taskID string, handle func(Outcome) bool) error {
	base := p.interval(sh)
	errs := 0
	timer := time.NewTimer(base)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		doc, err := p.client.GetJSON(ctx, sh.path(taskID))
		if err != nil {
			if errors.Is(err, domain.ErrAuthMissing) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs++
			p.logger.Warn().Err(err).Str("task_id", taskID).Int("consecutive_errors", errs).Msg("poller: status request failed")
			if p.policy.exhausted(errs) {
				return fmt.Errorf("generation: task %s: %w", taskID, domain.ErrPollingAbandoned)
			}
			timer.Reset(p.policy.delay(base, errs))
			continue
		}
		errs = 0
		if handle(sh.interpret(doc)) {
			return nil
		}
		timer.Reset(base)
	}
}
