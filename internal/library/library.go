// Package library keeps the in-memory, newest-first projection of generated
// assets and writes every meaningful change through to the durable store.
package library

import (
	"context"
	"sort"
	"sync"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event is published to subscribers after every change of the projection.
type Event struct {
	Kind  EventKind             `json:"kind"`
	Asset domain.GeneratedAsset `json:"asset"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Type   domain.AssetType
	Status domain.AssetStatus
	IDs    []string
}

func (f Filter) match(a *domain.GeneratedAsset) bool {
	if f.Type != "" && a.Type != f.Type {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if len(f.IDs) > 0 {
		for _, id := range f.IDs {
			if id == a.ID {
				return true
			}
		}
		return false
	}
	return true
}

// Library is the Asset Reducer. Mutations are serialized, and each one is
// applied and persisted before the next, so a delete can never interleave
// with an update's write and resurrect the record.
type Library struct {
	mu      sync.Mutex
	assets  map[string]*domain.GeneratedAsset
	store   domain.AssetStore
	logger  *infra.Logger
	now     func() time.Time
	subs    map[int]chan Event
	nextSub int
}

// Option configures a Library.
type Option func(*Library)

// WithClock overrides the clock used for updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

func New(store domain.AssetStore, logger *infra.Logger, opts ...Option) *Library {
	l := &Library{
		assets: make(map[string]*domain.GeneratedAsset),
		store:  store,
		logger: infra.OrDiscard(logger),
		now:    time.Now,
		subs:   make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load hydrates the projection from the store, replacing its content.
// An unreadable store leaves the library empty rather than failing.
func (l *Library) Load(ctx context.Context) {
	records, err := l.store.GetAll(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("asset store unavailable, starting empty")
		records = nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.assets = make(map[string]*domain.GeneratedAsset, len(records))
	for i := range records {
		a := records[i].Clone()
		l.assets[a.ID] = &a
	}
	l.logger.Info().Int("assets", len(records)).Msg("library loaded")
}

// Insert adds new assets and persists them. Ids already present are skipped.
func (l *Library) Insert(ctx context.Context, assets ...domain.GeneratedAsset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, asset := range assets {
		if _, exists := l.assets[asset.ID]; exists {
			continue
		}
		a := asset.Clone()
		a.UpdatedAt = l.now().UnixMilli()
		l.assets[a.ID] = &a
		l.persist(ctx, a)
		l.publish(Event{Kind: EventCreated, Asset: a.Clone()})
	}
}

// Update applies mutate to a copy of the asset. When mutate reports a change
// the copy replaces the stored asset. Unknown ids are refused, which keeps a
// deleted asset from coming back through a late poll result.
func (l *Library) Update(ctx context.Context, id string, mutate func(*domain.GeneratedAsset) bool) (domain.GeneratedAsset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.assets[id]
	if !ok {
		return domain.GeneratedAsset{}, false
	}
	next := current.Clone()
	if !mutate(&next) {
		return current.Clone(), false
	}
	next.UpdatedAt = l.now().UnixMilli()
	l.assets[id] = &next
	// processing is a projection-only mark; the store keeps the queued record.
	if next.Status != domain.StatusProcessing {
		l.persist(ctx, next)
	}
	l.publish(Event{Kind: EventUpdated, Asset: next.Clone()})
	return next.Clone(), true
}

// Delete removes the asset from the projection and the store. It reports the
// removed asset so callers can cancel its polling task.
func (l *Library) Delete(ctx context.Context, id string) (domain.GeneratedAsset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.assets[id]
	if ok {
		delete(l.assets, id)
	}
	if err := l.store.Delete(ctx, id); err != nil {
		l.logger.Warn().Err(err).Str("asset_id", id).Msg("asset delete not persisted")
	}
	if !ok {
		return domain.GeneratedAsset{}, false
	}
	removed := current.Clone()
	l.publish(Event{Kind: EventDeleted, Asset: removed})
	return removed, true
}

func (l *Library) Get(id string) (domain.GeneratedAsset, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[id]
	if !ok {
		return domain.GeneratedAsset{}, false
	}
	return a.Clone(), true
}

// List returns matching assets, newest first. Equal timestamps order by id.
func (l *Library) List(filter Filter) []domain.GeneratedAsset {
	l.mu.Lock()
	out := make([]domain.GeneratedAsset, 0, len(l.assets))
	for _, a := range l.assets {
		if filter.match(a) {
			out = append(out, a.Clone())
		}
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pending returns every non-terminal asset, newest first.
func (l *Library) Pending() []domain.GeneratedAsset {
	all := l.List(Filter{})
	out := all[:0]
	for _, a := range all {
		if a.Pending() {
			out = append(out, a)
		}
	}
	return out
}

// Subscribe registers a listener. Events are dropped for listeners whose
// buffer is full. The returned func unsubscribes and closes the channel.
func (l *Library) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// persist writes through to the store. Failures are logged and swallowed.
func (l *Library) persist(ctx context.Context, a domain.GeneratedAsset) {
	if err := l.store.Put(ctx, a); err != nil {
		l.logger.Warn().Err(err).Str("asset_id", a.ID).Str("status", string(a.Status)).Msg("asset not persisted")
	}
}

func (l *Library) publish(ev Event) {
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
			l.logger.Debug().Str("asset_id", ev.Asset.ID).Msg("subscriber lagging, event dropped")
		}
	}
}
