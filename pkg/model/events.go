package model

import "time"

const (
	EventCacheWarmed      = "evt.pricing.cache.warmed.v1"
	EventContentPublished = "evt.cms.content.published.v1"
	WarmStepOK            = "ok"
	WarmStepFailed        = "failed"
)

// CacheStats is a point-in-time size report of every cache namespace.
type CacheStats struct {
	PagesSize        int  `json:"pages_size"`
	BlogPostsSize    int  `json:"blog_posts_size"`
	BlogListingsSize int  `json:"blog_listings_size"`
	SettingsCached   bool `json:"settings_cached"`
	AgreementsSize   int  `json:"agreements_size"`
	ContentTypesSize int  `json:"content_types_size"`
}

// WarmStep is the outcome of one warm-up step.
type WarmStep struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Loaded     int    `json:"loaded"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// WarmupReport summarizes a cache warm-up run.
type WarmupReport struct {
	Event      string     `json:"event"`
	StartedAt  time.Time  `json:"started_at"`
	Timestamp  time.Time  `json:"timestamp"`
	DurationMS int64      `json:"duration_ms"`
	Steps      []WarmStep `json:"steps"`
	Failed     int        `json:"failed"`
	Stats      CacheStats `json:"stats"`
}

// InvalidationRequest asks the cache to drop entries. An empty Namespace
// means every namespace; an empty Key means the whole namespace.
type InvalidationRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}
