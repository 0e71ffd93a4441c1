package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/geo"
	"github.com/mathi4s/gatehouse/internal/models"
)

var ErrTrackingDisabled = errors.New("tracking is disabled")

// AnalyticsService records page views with optional geo enrichment.
type AnalyticsService struct {
	db       *gorm.DB
	resolver geo.Resolver
	settings *SettingsService
}

// NewAnalyticsService returns an AnalyticsService using the provided DB,
// geo resolver and settings store.
func NewAnalyticsService(db *gorm.DB, resolver geo.Resolver, settings *SettingsService) *AnalyticsService {
	if resolver == nil {
		resolver = geo.Noop{}
	}
	return &AnalyticsService{db: db, resolver: resolver, settings: settings}
}

// PageViewInput is the tracked payload before enrichment.
type PageViewInput struct {
	Page      string
	IP        string
	UserAgent string
	Referrer  string
	Language  string
	SessionID string
}

// Track stores one page view. Respects the site-wide tracking toggle.
func (s *AnalyticsService) Track(ctx context.Context, in PageViewInput) (*models.PageView, error) {
	if !s.settings.GetBool(ctx, models.SettingTrackingEnabled, true) {
		return nil, ErrTrackingDisabled
	}

	loc := s.resolver.Resolve(ctx, in.IP)
	device, browser, os := parseUserAgent(in.UserAgent)

	view := models.PageView{
		Page:      normalizePage(in.Page),
		IP:        in.IP,
		UserAgent: in.UserAgent,
		Device:    device,
		Browser:   browser,
		OS:        os,
		Referrer:  normalizeReferrer(in.Referrer),
		City:      loc.City,
		Country:   loc.Country,
		Language:  in.Language,
		SessionID: in.SessionID,
		ViewedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&view).Error; err != nil {
		return nil, err
	}
	return &view, nil
}

// PageStats aggregates views per page since a cutoff.
type PageStats struct {
	Page    string `json:"page"`
	Views   int64  `json:"views"`
	Uniques int64  `json:"uniques"`
}

// Stats returns per-page view counts since the cutoff, busiest first.
func (s *AnalyticsService) Stats(ctx context.Context, since time.Time) ([]PageStats, error) {
	var stats []PageStats
	err := s.db.WithContext(ctx).Model(&models.PageView{}).
		Select("page, COUNT(*) as views, COUNT(DISTINCT session_id) as uniques").
		Where("viewed_at > ?", since).
		Group("page").
		Order("views desc").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CountryStats aggregates views per country.
type CountryStats struct {
	Country string `json:"country"`
	Views   int64  `json:"views"`
}

// Countries returns view counts per country since the cutoff.
func (s *AnalyticsService) Countries(ctx context.Context, since time.Time) ([]CountryStats, error) {
	var stats []CountryStats
	err := s.db.WithContext(ctx).Model(&models.PageView{}).
		Select("country, COUNT(*) as views").
		Where("viewed_at > ? AND country != ''", since).
		Group("country").
		Order("views desc").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// normalizePage strips query strings and trailing slashes so /blog/ and
// /blog?ref=x aggregate together.
func normalizePage(page string) string {
	if i := strings.IndexAny(page, "?#"); i >= 0 {
		page = page[:i]
	}
	if len(page) > 1 {
		page = strings.TrimRight(page, "/")
	}
	if page == "" {
		page = "/"
	}
	return page
}

// normalizeReferrer keeps only the referrer's host.
func normalizeReferrer(ref string) string {
	ref = strings.TrimPrefix(ref, "https://")
	ref = strings.TrimPrefix(ref, "http://")
	if i := strings.Index(ref, "/"); i >= 0 {
		ref = ref[:i]
	}
	return ref
}

// parseUserAgent does a coarse device/browser/OS split. Enough for a personal
// site's dashboard; not a full UA database.
func parseUserAgent(ua string) (device, browser, os string) {
	low := strings.ToLower(ua)

	switch {
	case strings.Contains(low, "ipad") || strings.Contains(low, "tablet"):
		device = "tablet"
	case strings.Contains(low, "mobi") || strings.Contains(low, "android") || strings.Contains(low, "iphone"):
		device = "mobile"
	case low == "":
		device = "unknown"
	default:
		device = "desktop"
	}

	switch {
	case strings.Contains(low, "edg/"):
		browser = "Edge"
	case strings.Contains(low, "opr/") || strings.Contains(low, "opera"):
		browser = "Opera"
	case strings.Contains(low, "firefox/"):
		browser = "Firefox"
	case strings.Contains(low, "chrome/"):
		browser = "Chrome"
	case strings.Contains(low, "safari/"):
		browser = "Safari"
	default:
		browser = "Other"
	}

	switch {
	case strings.Contains(low, "windows"):
		os = "Windows"
	case strings.Contains(low, "android"):
		os = "Android"
	case strings.Contains(low, "iphone") || strings.Contains(low, "ipad") || strings.Contains(low, "ios"):
		os = "iOS"
	case strings.Contains(low, "mac os"):
		os = "macOS"
	case strings.Contains(low, "linux"):
		os = "Linux"
	default:
		os = "Other"
	}

	return device, browser, os
}
