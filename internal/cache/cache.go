package cache

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/pkg/model"
)

// Namespace names, as used by the invalidation API and listeners.
const (
	NamespacePages        = "pages"
	NamespaceBlogPosts    = "blog_posts"
	NamespaceBlogListings = "blog_listings"
	NamespaceSettings     = "settings"
	NamespaceAgreements   = "agreements"
	NamespaceContentTypes = "content_types"

	// SettingsKey is the single key of the settings namespace.
	SettingsKey = "settings"
)

// ErrUnknownNamespace is returned for namespace names AppCache does not hold.
var ErrUnknownNamespace = errors.New("unknown cache namespace")

// Config sizes every namespace.
type Config struct {
	Pages        NamespaceConfig
	BlogPosts    NamespaceConfig
	BlogListings NamespaceConfig
	Settings     NamespaceConfig
	Agreements   NamespaceConfig
	ContentTypes NamespaceConfig
}

// DefaultConfig returns the production sizing.
func DefaultConfig() Config {
	return Config{
		Pages:        NamespaceConfig{MaxEntries: 100, TTL: 30 * time.Minute, TTI: 10 * time.Minute},
		BlogPosts:    NamespaceConfig{MaxEntries: 500, TTL: 60 * time.Minute, TTI: 30 * time.Minute},
		BlogListings: NamespaceConfig{MaxEntries: 50, TTL: 15 * time.Minute, TTI: 5 * time.Minute},
		Settings:     NamespaceConfig{MaxEntries: 1, TTL: 30 * time.Minute},
		Agreements:   NamespaceConfig{MaxEntries: 1000, TTL: 5 * time.Minute, TTI: 2 * time.Minute},
		ContentTypes: NamespaceConfig{MaxEntries: 200, TTL: 60 * time.Minute},
	}
}

// AppCache is the process-wide read cache. It is shared by reference
// between the API, the warmer and the invalidation listeners.
type AppCache struct {
	Pages        *Namespace[*model.ParsedPage]
	BlogPosts    *Namespace[*model.ParsedPage]
	BlogListings *Namespace[*model.BlogListing]
	Settings     *Namespace[*model.CMSSettings]
	Agreements   *Namespace[*model.Agreement]
	ContentTypes *Namespace[*model.ContentType]

	logger *zap.Logger
}

// New builds an AppCache from cfg.
func New(cfg Config, logger *zap.Logger) *AppCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppCache{
		Pages:        NewNamespace[*model.ParsedPage](NamespacePages, cfg.Pages),
		BlogPosts:    NewNamespace[*model.ParsedPage](NamespaceBlogPosts, cfg.BlogPosts),
		BlogListings: NewNamespace[*model.BlogListing](NamespaceBlogListings, cfg.BlogListings),
		Settings:     NewNamespace[*model.CMSSettings](NamespaceSettings, cfg.Settings),
		Agreements:   NewNamespace[*model.Agreement](NamespaceAgreements, cfg.Agreements),
		ContentTypes: NewNamespace[*model.ContentType](NamespaceContentTypes, cfg.ContentTypes),
		logger:       logger,
	}
}

// Namespaces lists every namespace name.
func Namespaces() []string {
	return []string{
		NamespacePages, NamespaceBlogPosts, NamespaceBlogListings,
		NamespaceSettings, NamespaceAgreements, NamespaceContentTypes,
	}
}

// Stats reports live entry counts.
func (c *AppCache) Stats() model.CacheStats {
	return model.CacheStats{
		PagesSize:        c.Pages.Len(),
		BlogPostsSize:    c.BlogPosts.Len(),
		BlogListingsSize: c.BlogListings.Len(),
		SettingsCached:   c.Settings.Len() > 0,
		AgreementsSize:   c.Agreements.Len(),
		ContentTypesSize: c.ContentTypes.Len(),
	}
}

// InvalidatePage drops slug from pages and blog posts. Every blog listing
// is dropped too since any of them may include the post.
func (c *AppCache) InvalidatePage(slug string) {
	c.Pages.Invalidate(slug)
	c.BlogPosts.Invalidate(slug)
	c.BlogListings.InvalidateAll()
	c.logger.Info("cache.page_invalidated", zap.String("slug", slug))
}

// Invalidate drops one key. Keys in pages or blog_posts follow the
// InvalidatePage rule.
func (c *AppCache) Invalidate(namespace, key string) error {
	switch namespace {
	case NamespacePages, NamespaceBlogPosts:
		c.InvalidatePage(key)
		return nil
	case NamespaceBlogListings:
		c.BlogListings.Invalidate(key)
	case NamespaceSettings:
		c.Settings.Invalidate(key)
	case NamespaceAgreements:
		c.Agreements.Invalidate(key)
	case NamespaceContentTypes:
		c.ContentTypes.Invalidate(key)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}
	c.logger.Info("cache.key_invalidated", zap.String("namespace", namespace), zap.String("key", key))
	return nil
}

// InvalidateNamespace empties one namespace.
func (c *AppCache) InvalidateNamespace(namespace string) error {
	switch namespace {
	case NamespacePages:
		c.Pages.InvalidateAll()
	case NamespaceBlogPosts:
		c.BlogPosts.InvalidateAll()
	case NamespaceBlogListings:
		c.BlogListings.InvalidateAll()
	case NamespaceSettings:
		c.Settings.InvalidateAll()
	case NamespaceAgreements:
		c.Agreements.InvalidateAll()
	case NamespaceContentTypes:
		c.ContentTypes.InvalidateAll()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNamespace, namespace)
	}
	c.logger.Info("cache.namespace_invalidated", zap.String("namespace", namespace))
	return nil
}

// InvalidateAll empties every namespace.
func (c *AppCache) InvalidateAll() {
	c.Pages.InvalidateAll()
	c.BlogPosts.InvalidateAll()
	c.BlogListings.InvalidateAll()
	c.Settings.InvalidateAll()
	c.Agreements.InvalidateAll()
	c.ContentTypes.InvalidateAll()
	c.logger.Info("cache.all_invalidated")
}

// Cleanup drops expired entries everywhere.
func (c *AppCache) Cleanup() int {
	return c.Pages.Cleanup() +
		c.BlogPosts.Cleanup() +
		c.BlogListings.Cleanup() +
		c.Settings.Cleanup() +
		c.Agreements.Cleanup() +
		c.ContentTypes.Cleanup()
}

// StartCleaner runs Cleanup every interval until stop is closed.
func (c *AppCache) StartCleaner(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := c.Cleanup(); removed > 0 {
				c.logger.Debug("cache.cleanup", zap.Int("removed", removed))
			}
		case <-stop:
			return
		}
	}
}

// BlogListingKey keys a listing page; an empty category means all posts.
func BlogListingKey(category string, page int) string {
	if category == "" {
		category = "all"
	}
	return "blog:" + category + ":" + strconv.Itoa(page)
}

// AgreementKey keys an agreement by scope type and governed reference.
func AgreementKey(scopeType string, ref model.ScopeRef) string {
	return "agreement:" + scopeType + ":" + ref.String()
}

// ContentTypeKey keys a content type by its natural pair.
func ContentTypeKey(appLabel, modelName string) string {
	return appLabel + "." + modelName
}
