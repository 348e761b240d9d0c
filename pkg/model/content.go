package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Page is a row of django_cms_core_contentpage.
type Page struct {
	ID                uuid.UUID
	Slug              string
	Title             string
	PageType          string
	Status            string
	SeoTitle          string
	SeoDescription    string
	OgImageURL        string
	Robots            string
	PublishedSnapshot []byte
	PublishedAt       *time.Time
	TemplateKey       string
}

// PageMeta is the SEO metadata frozen into a published snapshot.
type PageMeta struct {
	Title          string `json:"title,omitempty"`
	SeoTitle       string `json:"seo_title,omitempty"`
	SeoDescription string `json:"seo_description,omitempty"`
	OgImageURL     string `json:"og_image_url,omitempty"`
	Robots         string `json:"robots,omitempty"`
}

// Block is one renderable content block.
type Block struct {
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

type publishedSnapshot struct {
	Meta   PageMeta `json:"meta"`
	Blocks []Block  `json:"blocks"`
}

// ParsedPage is a page ready for rendering.
type ParsedPage struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Meta        PageMeta `json:"meta"`
	Blocks      []Block  `json:"blocks"`
	TemplateKey string   `json:"template_key"`
}

// Parse decodes the published snapshot. ok is false when the page has no
// snapshot or the snapshot is not valid JSON.
func (p *Page) Parse() (*ParsedPage, bool) {
	if len(p.PublishedSnapshot) == 0 {
		return nil, false
	}
	var snap publishedSnapshot
	if err := json.Unmarshal(p.PublishedSnapshot, &snap); err != nil {
		return nil, false
	}
	if snap.Blocks == nil {
		snap.Blocks = []Block{}
	}
	return &ParsedPage{
		Slug:        p.Slug,
		Title:       p.Title,
		Meta:        snap.Meta,
		Blocks:      snap.Blocks,
		TemplateKey: p.TemplateKey,
	}, true
}

// BlogPostSummary is a list entry of published posts.
type BlogPostSummary struct {
	Slug               string     `json:"slug"`
	Title              string     `json:"title"`
	Excerpt            string     `json:"excerpt"`
	FeaturedImageURL   string     `json:"featured_image_url"`
	CategoryName       *string    `json:"category_name,omitempty"`
	CategorySlug       *string    `json:"category_slug,omitempty"`
	CategoryColor      *string    `json:"category_color,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	ReadingTimeMinutes *int32     `json:"reading_time_minutes,omitempty"`
}

// BlogListing is one cached page of post summaries.
type BlogListing struct {
	Category string            `json:"category,omitempty"`
	Page     int               `json:"page"`
	Posts    []BlogPostSummary `json:"posts"`
}

// CMSSettings is the site-wide settings singleton.
type CMSSettings struct {
	SiteName              string          `json:"site_name"`
	DefaultSeoTitleSuffix string          `json:"default_seo_title_suffix"`
	DefaultOgImageURL     string          `json:"default_og_image_url"`
	NavJSON               json.RawMessage `json:"nav_json"`
	FooterJSON            json.RawMessage `json:"footer_json"`
}

// DefaultCMSSettings is used when the settings row does not exist.
func DefaultCMSSettings() CMSSettings {
	return CMSSettings{
		SiteName:              "Happy Diving",
		DefaultSeoTitleSuffix: " | Happy Diving",
		NavJSON:               json.RawMessage(`[]`),
		FooterJSON:            json.RawMessage(`{}`),
	}
}

// CatalogItem is a priced product or service, looked up by display name.
type CatalogItem struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Active      bool      `json:"active"`
}
