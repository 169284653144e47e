// Package generation turns generation requests into placeholder assets,
// submits them to the providers and follows asynchronous jobs to the end.
package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/library"
)

const maxLabelLen = 120

// Provider submits one unit of output for a capability.
type Provider interface {
	Submit(ctx context.Context, cfg domain.GenerationConfig) (domain.Submission, error)
}

// Remixer re-renders an existing video job with a new prompt.
type Remixer interface {
	Remix(ctx context.Context, sourceTaskID, modelID, prompt string) (domain.Submission, error)
}

// LyricsWriter starts a lyrics job.
type LyricsWriter interface {
	SubmitLyrics(ctx context.Context, prompt string) (string, error)
}

// MediaSpiller moves inline data URIs to file storage and returns the new
// locator.
type MediaSpiller interface {
	Spill(ctx context.Context, assetID, locator string) (string, error)
}

// Deps are the collaborators of a Submitter. Media is optional.
type Deps struct {
	Catalog     *catalog.Catalog
	Library     *library.Library
	Poller      *Poller
	Credentials CredentialChecker
	Image       Provider
	Video       Provider
	Audio       Provider
	Music       Provider
	Remixer     Remixer
	Lyrics      LyricsWriter
	Media       MediaSpiller
	Logger      *infra.Logger
	Now         func() time.Time
	NewID       func() string
}

// Submitter materializes placeholders and runs one submission goroutine per
// unit. Units are independent: one failing never affects its siblings.
type Submitter struct {
	ctx       context.Context
	deps      Deps
	providers map[domain.AssetType]Provider
	logger    *infra.Logger
	wg        sync.WaitGroup
}

// NewSubmitter builds a Submitter. Submission goroutines run under ctx rather
// than the caller's request context, so they outlive the HTTP request.
func NewSubmitter(ctx context.Context, deps Deps) *Submitter {
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Submitter{
		ctx:  ctx,
		deps: deps,
		providers: map[domain.AssetType]Provider{
			domain.AssetTypeImage: deps.Image,
			domain.AssetTypeVideo: deps.Video,
			domain.AssetTypeAudio: deps.Audio,
			domain.AssetTypeMusic: deps.Music,
		},
		logger: infra.OrDiscard(deps.Logger),
	}
}

// Submit validates req, inserts one loading placeholder per unit and starts
// the submissions. The placeholders are returned before any provider answers.
func (s *Submitter) Submit(ctx context.Context, req domain.GenerateRequest) ([]domain.GeneratedAsset, error) {
	if err := s.checkCredentials(); err != nil {
		return nil, err
	}
	p, err := normalize(s.deps.Catalog, req)
	if err != nil {
		return nil, err
	}
	provider := s.providers[p.cfg.Type]
	if provider == nil {
		return nil, domain.Invalid("type", "%s generation is not configured", p.cfg.Type)
	}
	labels := NewLabels(req.Locale)

	now := s.deps.Now().UnixMilli()
	assets := make([]domain.GeneratedAsset, p.count)
	for i := range assets {
		cfg := p.cfg.Clone()
		assets[i] = domain.GeneratedAsset{
			ID:           s.deps.NewID(),
			Type:         p.cfg.Type,
			Prompt:       p.prompt,
			ModelID:      p.model.ID,
			ModelName:    p.model.Name,
			DurationText: p.durationText,
			GenTimeLabel: labels.Text(LabelGenerating),
			Timestamp:    now,
			Status:       domain.StatusLoading,
			Config:       &cfg,
		}
	}
	s.deps.Library.Insert(ctx, assets...)
	s.logger.Info().Str("type", string(p.cfg.Type)).Str("model", p.model.ID).Int("count", p.count).Msg("generation submitted")

	for _, asset := range assets {
		s.spawn(func(ctx context.Context) {
			sub, err := provider.Submit(ctx, *asset.Config)
			s.resolve(ctx, asset, sub, err, labels)
		})
	}
	return assets, nil
}

// Regenerate submits the retained config of an existing asset again as a
// single new asset.
func (s *Submitter) Regenerate(ctx context.Context, id, locale string) (domain.GeneratedAsset, error) {
	source, ok := s.deps.Library.Get(id)
	if !ok {
		return domain.GeneratedAsset{}, domain.ErrNotFound
	}
	if source.Config == nil {
		return domain.GeneratedAsset{}, domain.Invalid("config", "asset %s has no retained settings", id)
	}
	req := domain.GenerateRequest{GenerationConfig: source.Config.Clone(), Count: 1}
	if locale != "" {
		req.Locale = locale
	}
	if req.Type == "" {
		req.Type = source.Type
	}
	if req.ModelID == "" {
		req.ModelID = source.ModelID
	}
	assets, err := s.Submit(ctx, req)
	if err != nil {
		return domain.GeneratedAsset{}, err
	}
	return assets[0], nil
}

// Remix re-renders a finished video job with a new prompt as a new asset.
func (s *Submitter) Remix(ctx context.Context, id, prompt, locale string) (domain.GeneratedAsset, error) {
	if err := s.checkCredentials(); err != nil {
		return domain.GeneratedAsset{}, err
	}
	if s.deps.Remixer == nil {
		return domain.GeneratedAsset{}, domain.Invalid("type", "remix is not configured")
	}
	source, ok := s.deps.Library.Get(id)
	if !ok {
		return domain.GeneratedAsset{}, domain.ErrNotFound
	}
	if source.Type != domain.AssetTypeVideo || source.TaskID == "" {
		return domain.GeneratedAsset{}, domain.Invalid("id", "only provider video jobs can be remixed")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.GeneratedAsset{}, domain.Invalid("prompt", "remix prompt is required")
	}
	var cfg domain.GenerationConfig
	if source.Config != nil {
		cfg = source.Config.Clone()
	}
	cfg.Type = domain.AssetTypeVideo
	cfg.Prompt = prompt
	cfg.RemixOf = source.ID
	if locale != "" {
		cfg.Locale = locale
	}
	labels := NewLabels(cfg.Locale)
	asset := domain.GeneratedAsset{
		ID:           s.deps.NewID(),
		Type:         domain.AssetTypeVideo,
		Prompt:       prompt,
		ModelID:      source.ModelID,
		ModelName:    source.ModelName + " (Remix)",
		DurationText: source.DurationText,
		GenTimeLabel: labels.Text(LabelRemixing),
		Timestamp:    s.deps.Now().UnixMilli(),
		Status:       domain.StatusLoading,
		Config:       &cfg,
	}
	s.deps.Library.Insert(ctx, asset)

	sourceTask, modelID := source.TaskID, source.ModelID
	s.spawn(func(ctx context.Context) {
		sub, err := s.deps.Remixer.Remix(ctx, sourceTask, modelID, prompt)
		s.resolve(ctx, asset, sub, err, labels)
	})
	return asset, nil
}

// Lyrics writes song lyrics for prompt and waits for the text.
func (s *Submitter) Lyrics(ctx context.Context, prompt string) (string, error) {
	if err := s.checkCredentials(); err != nil {
		return "", err
	}
	if s.deps.Lyrics == nil || s.deps.Poller == nil {
		return "", domain.Invalid("type", "lyrics are not configured")
	}
	taskID, err := s.deps.Lyrics.SubmitLyrics(ctx, prompt)
	if err != nil {
		return "", err
	}
	out, err := s.deps.Poller.Await(ctx, domain.FamilySunoLyrics, taskID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Text) == "" {
		return "", domain.ErrNoResult
	}
	return out.Text, nil
}

// Wait blocks until every submission goroutine has finished.
func (s *Submitter) Wait() {
	s.wg.Wait()
}

func (s *Submitter) spawn(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

func (s *Submitter) checkCredentials() error {
	if s.deps.Credentials != nil && !s.deps.Credentials.HasCredentials() {
		return domain.ErrAuthMissing
	}
	return nil
}

// resolve applies the provider answer for one unit to its placeholder.
func (s *Submitter) resolve(ctx context.Context, asset domain.GeneratedAsset, sub domain.Submission, err error, labels Labels) {
	log := s.logger.With().Str("asset_id", asset.ID).Str("model", asset.ModelID).Logger()
	persist := context.WithoutCancel(ctx)

	switch {
	case err != nil:
		label := failureLabel(err, asset.Type, labels)
		log.Warn().Err(err).Str("label", label).Msg("generation request failed")
		s.deps.Library.Update(persist, asset.ID, func(a *domain.GeneratedAsset) bool { return a.Fail(label) })

	case sub.Async():
		updated, ok := s.deps.Library.Update(persist, asset.ID, func(a *domain.GeneratedAsset) bool {
			if !a.Enqueue(sub.TaskID, sub.Family) {
				return false
			}
			if sub.ModelID != "" {
				a.ModelID = sub.ModelID
			}
			return true
		})
		if !ok {
			log.Debug().Str("task_id", sub.TaskID).Msg("asset gone before its task was queued")
			return
		}
		log.Info().Str("task_id", sub.TaskID).Str("family", updated.PollFamily).Msg("generation queued")
		if s.deps.Poller != nil {
			s.deps.Poller.Track(updated)
		}

	case strings.TrimSpace(sub.Locator) != "":
		locator := sub.Locator
		if s.deps.Media != nil {
			spilled, serr := s.deps.Media.Spill(persist, asset.ID, locator)
			if serr != nil {
				log.Warn().Err(serr).Msg("inline result kept as data uri")
			} else {
				locator = spilled
			}
		}
		label := Elapsed(asset.CreatedAt(), s.deps.Now())
		s.deps.Library.Update(persist, asset.ID, func(a *domain.GeneratedAsset) bool {
			if !a.Complete(locator, label) {
				return false
			}
			if sub.CoverURL != "" {
				a.CoverURL = sub.CoverURL
			}
			if sub.Title != "" {
				a.Title = sub.Title
			}
			return true
		})
		log.Info().Str("elapsed", label).Msg("generation completed inline")

	default:
		label := labels.Text(emptyLabel(asset.Type))
		log.Warn().Msg("provider returned neither a result nor a task id")
		s.deps.Library.Update(persist, asset.ID, func(a *domain.GeneratedAsset) bool { return a.Fail(label) })
	}
}

// failureLabel turns a submission error into the short label shown on a
// failed asset.
func failureLabel(err error, t domain.AssetType, labels Labels) string {
	var (
		subErr *domain.SubmissionError
		valErr *domain.ValidationError
	)
	switch {
	case errors.Is(err, domain.ErrNoResult):
		return labels.Text(emptyLabel(t))
	case errors.As(err, &valErr):
		return truncate(valErr.Message)
	case errors.As(err, &subErr):
		if subErr.Status == 0 && subErr.Err != nil {
			return labels.Text(LabelRequestFailed)
		}
		if msg := strings.TrimSpace(subErr.Message); msg != "" {
			return truncate(msg)
		}
		return labels.Text(LabelRequestFailed)
	case errors.Is(err, domain.ErrAuthMissing):
		return labels.Text(LabelRequestFailed)
	default:
		return labels.Text(LabelFailed)
	}
}

func emptyLabel(t domain.AssetType) string {
	switch t {
	case domain.AssetTypeImage:
		return LabelNoImage
	case domain.AssetTypeVideo:
		return LabelNoVideo
	case domain.AssetTypeAudio:
		return LabelNoAudio
	default:
		return LabelNoResult
	}
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxLabelLen {
		return s
	}
	return string([]rune(s)[:maxLabelLen]) + "..."
}
