package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/cache"
	"github.com/happydiving/pricing-engine/internal/metrics"
	"github.com/happydiving/pricing-engine/pkg/model"
)

const (
	// WarmupStatusKey holds the last warm-up report in the status store.
	WarmupStatusKey = "pricing:warmup:last"

	HomepageSlug        = "home"
	BlogListingPageSize = 12

	warmupStatusTTL = 24 * time.Hour
)

// ContentStore is the read side the warmer loads from.
type ContentStore interface {
	GetCMSSettings(ctx context.Context) (*model.CMSSettings, error)
	GetPublishedPage(ctx context.Context, slug string) (*model.Page, error)
	GetBlogPosts(ctx context.Context, category string, limit, offset int) ([]model.BlogPostSummary, error)
	ListContentTypes(ctx context.Context) ([]model.ContentType, error)
	ListActiveVendorAgreements(ctx context.Context, at time.Time) ([]*model.Agreement, error)
}

// StatusWriter persists the last report.
type StatusWriter interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	PublishCacheWarmed(ctx context.Context, report model.WarmupReport) error
}

// CacheWarmer periodically preloads the read cache. Each step is isolated:
// a failing or panicking step is recorded and the others still run.
type CacheWarmer struct {
	logger    *zap.Logger
	store     ContentStore
	cache     *cache.AppCache
	status    StatusWriter
	publisher EventPublisher
	interval  time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	running   atomic.Bool
	wg        sync.WaitGroup
	now       func() time.Time

	mu   sync.RWMutex
	last *model.WarmupReport
}

type warmStep struct {
	name string
	run  func(ctx context.Context) (int, error)
}

// NewCacheWarmer constructs the warmer. status and pub may be nil.
func NewCacheWarmer(logger *zap.Logger, store ContentStore, c *cache.AppCache, status StatusWriter, pub EventPublisher, interval time.Duration) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{
		logger:    logger,
		store:     store,
		cache:     c,
		status:    status,
		publisher: pub,
		interval:  interval,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start warms once, then every interval until Stop or ctx cancellation.
// Ticks run in the background so a slow run never delays the next tick;
// a tick that finds a run still in flight is skipped.
func (w *CacheWarmer) Start(ctx context.Context) {
	w.logger.Info("cache_warmer.started", zap.Duration("interval", w.interval))
	w.RunOnce(ctx, "startup")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				w.RunOnce(ctx, "tick")
			}()
		case <-w.stopCh:
			w.wg.Wait()
			w.logger.Info("cache_warmer.stopped (manual stop)")
			return
		case <-ctx.Done():
			w.wg.Wait()
			w.logger.Info("cache_warmer.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (w *CacheWarmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// LastReport returns the most recent report produced by this process.
func (w *CacheWarmer) LastReport() (model.WarmupReport, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.last == nil {
		return model.WarmupReport{}, false
	}
	return *w.last, true
}

// RunOnce performs one warm-up. ok is false when another run was already
// in flight and this one was skipped.
func (w *CacheWarmer) RunOnce(ctx context.Context, trigger string) (report model.WarmupReport, ok bool) {
	if !w.running.CompareAndSwap(false, true) {
		metrics.CacheWarmSkipped.Inc()
		w.logger.Warn("cache_warmer.skipped", zap.String("trigger", trigger))
		return model.WarmupReport{}, false
	}
	defer w.running.Store(false)

	start := w.now()
	w.logger.Info("cache_warmer.running", zap.String("trigger", trigger))

	report = model.WarmupReport{
		Event:     model.EventCacheWarmed,
		StartedAt: start.UTC(),
	}
	for _, step := range w.steps(start) {
		res := w.runStep(ctx, step)
		if res.Status != model.WarmStepOK {
			report.Failed++
		}
		report.Steps = append(report.Steps, res)
	}

	report.Timestamp = w.now().UTC()
	report.DurationMS = report.Timestamp.Sub(report.StartedAt).Milliseconds()
	report.Stats = w.cache.Stats()
	metrics.ObserveDuration(metrics.CacheWarmDuration, start, trigger)

	w.mu.Lock()
	w.last = &report
	w.mu.Unlock()

	if w.status != nil {
		if err := w.status.SetJSON(ctx, WarmupStatusKey, report, warmupStatusTTL); err != nil {
			w.logger.Warn("cache_warmer.status_write_failed", zap.Error(err))
		}
	}
	if w.publisher != nil {
		if err := w.publisher.PublishCacheWarmed(ctx, report); err != nil {
			w.logger.Warn("cache_warmer.nats_publish_failed", zap.Error(err))
		}
	}

	w.logger.Info("cache_warmer.complete",
		zap.Int64("duration_ms", report.DurationMS),
		zap.Int("failed_steps", report.Failed),
		zap.Any("stats", report.Stats))
	return report, true
}

func (w *CacheWarmer) runStep(ctx context.Context, step warmStep) (res model.WarmStep) {
	start := w.now()
	res = model.WarmStep{Name: step.name, Status: model.WarmStepOK}

	defer func() {
		if r := recover(); r != nil {
			res.Status = model.WarmStepFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			w.logger.Error("cache_warmer.step_panicked", zap.String("step", step.name), zap.Any("panic", r))
		}
		res.DurationMS = w.now().Sub(start).Milliseconds()
		metrics.IncWarmStep(step.name, res.Status)
	}()

	loaded, err := step.run(ctx)
	res.Loaded = loaded
	if err != nil {
		res.Status = model.WarmStepFailed
		res.Error = err.Error()
		w.logger.Warn("cache_warmer.step_failed", zap.String("step", step.name), zap.Error(err))
	}
	return res
}

func (w *CacheWarmer) steps(at time.Time) []warmStep {
	return []warmStep{
		{name: "settings", run: w.warmSettings},
		{name: "homepage", run: w.warmHomepage},
		{name: "blog_listing", run: w.warmBlogListing},
		{name: "content_types", run: w.warmContentTypes},
		{name: "agreements", run: func(ctx context.Context) (int, error) { return w.warmAgreements(ctx, at) }},
	}
}

func (w *CacheWarmer) warmSettings(ctx context.Context) (int, error) {
	s, err := w.store.GetCMSSettings(ctx)
	if err != nil {
		return 0, err
	}
	if s == nil {
		def := model.DefaultCMSSettings()
		s = &def
	}
	w.cache.Settings.Insert(cache.SettingsKey, s)
	return 1, nil
}

func (w *CacheWarmer) warmHomepage(ctx context.Context) (int, error) {
	page, err := w.store.GetPublishedPage(ctx, HomepageSlug)
	if err != nil {
		return 0, err
	}
	if page == nil {
		return 0, nil
	}
	parsed, ok := page.Parse()
	if !ok {
		w.logger.Warn("cache_warmer.homepage_unparseable", zap.String("slug", HomepageSlug))
		return 0, nil
	}
	w.cache.Pages.Insert(HomepageSlug, parsed)
	return 1, nil
}

func (w *CacheWarmer) warmBlogListing(ctx context.Context) (int, error) {
	posts, err := w.store.GetBlogPosts(ctx, "", BlogListingPageSize, 0)
	if err != nil {
		return 0, err
	}
	w.cache.BlogListings.Insert(cache.BlogListingKey("", 1), &model.BlogListing{Page: 1, Posts: posts})
	return len(posts), nil
}

func (w *CacheWarmer) warmContentTypes(ctx context.Context) (int, error) {
	types, err := w.store.ListContentTypes(ctx)
	if err != nil {
		return 0, err
	}
	for i := range types {
		ct := types[i]
		w.cache.ContentTypes.Insert(cache.ContentTypeKey(ct.AppLabel, ct.Model), &ct)
	}
	return len(types), nil
}

// warmAgreements keys each agreement by scope. When several agreements
// share a scope, the most recently started one wins, as it would on a
// store lookup.
func (w *CacheWarmer) warmAgreements(ctx context.Context, at time.Time) (int, error) {
	agreements, err := w.store.ListActiveVendorAgreements(ctx, at)
	if err != nil {
		return 0, err
	}

	latest := make(map[string]*model.Agreement, len(agreements))
	for _, a := range agreements {
		if a == nil || !a.IsActiveAt(at) {
			continue
		}
		key := cache.AgreementKey(a.ScopeType, a.ScopeRef())
		if cur, ok := latest[key]; !ok || a.ValidFrom.After(cur.ValidFrom) {
			latest[key] = a
		}
	}
	for key, a := range latest {
		w.cache.Agreements.Insert(key, a)
	}
	return len(latest), nil
}
