package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/happydiving/pricing-engine/pkg/model"
)

// GetCMSSettings reads the settings singleton, falling back to defaults
// when the row does not exist.
func (s *PGStore) GetCMSSettings(ctx context.Context) (*model.CMSSettings, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	var (
		out         model.CMSSettings
		nav, footer []byte
	)
	err := s.PG.QueryRow(ctx, `
		SELECT site_name, default_seo_title_suffix, default_og_image_url, nav_json, footer_json
		FROM django_cms_core_cmssettings
		LIMIT 1
	`).Scan(&out.SiteName, &out.DefaultSeoTitleSuffix, &out.DefaultOgImageURL, &nav, &footer)
	if errors.Is(err, pgx.ErrNoRows) {
		def := model.DefaultCMSSettings()
		return &def, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetCMSSettings: %w", err)
	}
	out.NavJSON = rawOr(nav, `[]`)
	out.FooterJSON = rawOr(footer, `{}`)
	return &out, nil
}

// GetPublishedPage returns the published page with slug, or nil.
func (s *PGStore) GetPublishedPage(ctx context.Context, slug string) (*model.Page, error) {
	return s.getPage(ctx, slug, "page")
}

// GetBlogPost returns the published post with slug, or nil.
func (s *PGStore) GetBlogPost(ctx context.Context, slug string) (*model.Page, error) {
	return s.getPage(ctx, slug, "post")
}

func (s *PGStore) getPage(ctx context.Context, slug, pageType string) (*model.Page, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	var p model.Page
	err := s.PG.QueryRow(ctx, `
		SELECT id, slug, title, page_type, status,
		       seo_title, seo_description, og_image_url, robots,
		       published_snapshot, published_at, template_key
		FROM django_cms_core_contentpage
		WHERE slug = $1
		  AND status = 'published'
		  AND page_type = $2
		  AND deleted_at IS NULL
	`, slug, pageType).Scan(
		&p.ID, &p.Slug, &p.Title, &p.PageType, &p.Status,
		&p.SeoTitle, &p.SeoDescription, &p.OgImageURL, &p.Robots,
		&p.PublishedSnapshot, &p.PublishedAt, &p.TemplateKey,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getPage %s %q: %w", pageType, slug, err)
	}
	return &p, nil
}

// GetBlogPosts lists published posts newest first. An empty category lists
// every post.
func (s *PGStore) GetBlogPosts(ctx context.Context, category string, limit, offset int) ([]model.BlogPostSummary, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	rows, err := s.PG.Query(ctx, `
		SELECT p.slug, p.title, p.excerpt, p.featured_image_url,
		       c.name, c.slug, c.color,
		       p.published_at, p.reading_time_minutes
		FROM django_cms_core_contentpage p
		LEFT JOIN django_cms_core_blogcategory c
		       ON p.category_id = c.id AND c.deleted_at IS NULL
		WHERE p.page_type = 'post'
		  AND p.status = 'published'
		  AND p.deleted_at IS NULL
		  AND ($1 = '' OR c.slug = $1)
		ORDER BY p.published_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("GetBlogPosts: %w", err)
	}
	defer rows.Close()

	posts := []model.BlogPostSummary{}
	for rows.Next() {
		var b model.BlogPostSummary
		if err := rows.Scan(
			&b.Slug, &b.Title, &b.Excerpt, &b.FeaturedImageURL,
			&b.CategoryName, &b.CategorySlug, &b.CategoryColor,
			&b.PublishedAt, &b.ReadingTimeMinutes,
		); err != nil {
			return nil, fmt.Errorf("GetBlogPosts scan failed: %w", err)
		}
		posts = append(posts, b)
	}
	return posts, rows.Err()
}

func rawOr(b []byte, def string) json.RawMessage {
	if len(b) == 0 {
		return json.RawMessage(def)
	}
	return json.RawMessage(b)
}
