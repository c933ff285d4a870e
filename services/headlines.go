package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"trade-council/models"
	"trade-council/observability"
)

// HeadlineScraper pulls recent headlines from Google News search pages.
// It is the keyless fallback when neither Alpha Vantage news nor
// NewsAPI credentials are configured.
type HeadlineScraper struct {
	client  *resty.Client
	baseURL string
}

// NewHeadlineScraper creates a new HeadlineScraper instance
func NewHeadlineScraper() *HeadlineScraper {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (compatible; trade-council/1.0)")

	return &HeadlineScraper{
		client:  client,
		baseURL: "https://news.google.com/search",
	}
}

// ScrapeHeadlines returns up to limit recent headlines for a query
func (h *HeadlineScraper) ScrapeHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerHeadlines, "search")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerHeadlines, "search")

	searchURL := fmt.Sprintf("%s?q=%s&hl=en&gl=US&ceid=US:en", h.baseURL, url.QueryEscape(query))

	var articles []models.NewsArticle
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		resp, err := h.client.R().SetContext(ctx).Get(searchURL)
		if err != nil {
			return fmt.Errorf("failed to fetch headlines: %w", err)
		}

		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching headlines", resp.StatusCode())
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
		if err != nil {
			return fmt.Errorf("failed to parse HTML: %w", err)
		}

		articles = h.parseHeadlines(doc)
		if len(articles) > limit {
			articles = articles[:limit]
		}

		return nil
	})

	if err != nil {
		metrics.RecordExternalAPIError(BreakerHeadlines, "search", categorizeAPIError(err))
		return nil, err
	}

	return articles, nil
}

// parseHeadlines extracts articles from a Google News search page
func (h *HeadlineScraper) parseHeadlines(doc *goquery.Document) []models.NewsArticle {
	var articles []models.NewsArticle

	doc.Find("article").Each(func(i int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find("h3").Text())
		if title == "" {
			title = strings.TrimSpace(s.Find("h4").Text())
		}
		if title == "" {
			return
		}

		link := s.Find("a").First()
		href, exists := link.Attr("href")
		if !exists {
			return
		}

		source := strings.TrimSpace(s.Find("div[data-n-tid]").Text())
		if source == "" {
			source = "Google News"
		}

		timeText := strings.TrimSpace(s.Find("time").Text())

		articles = append(articles, models.NewsArticle{
			Title:       title,
			URL:         cleanGoogleNewsURL(href),
			Source:      source,
			PublishedAt: parseRelativeTime(timeText),
		})
	})

	return articles
}

// cleanGoogleNewsURL removes the Google News redirect wrapper
func cleanGoogleNewsURL(googleURL string) string {
	if strings.Contains(googleURL, "url=") {
		parts := strings.Split(googleURL, "url=")
		if len(parts) > 1 {
			decoded, err := url.QueryUnescape(parts[1])
			if err == nil {
				return decoded
			}
		}
	}

	if strings.HasPrefix(googleURL, "./") {
		return "https://news.google.com" + googleURL[1:]
	}
	if strings.HasPrefix(googleURL, "/") {
		return "https://news.google.com" + googleURL
	}

	return googleURL
}

var (
	minuteAgoRegex = regexp.MustCompile(`(\d+)\s*minutes?\s*ago`)
	hourAgoRegex   = regexp.MustCompile(`(\d+)\s*hours?\s*ago`)
	dayAgoRegex    = regexp.MustCompile(`(\d+)\s*days?\s*ago`)
)

// parseRelativeTime converts Google News relative timestamps ("3 hours
// ago") to wall-clock time. Unparseable text is treated as recent.
func parseRelativeTime(timeText string) time.Time {
	now := time.Now()
	timeText = strings.ToLower(strings.TrimSpace(timeText))

	if timeText == "just now" {
		return now
	}

	if matches := minuteAgoRegex.FindStringSubmatch(timeText); len(matches) > 1 {
		if minutes, err := strconv.Atoi(matches[1]); err == nil && minutes > 0 {
			return now.Add(-time.Duration(minutes) * time.Minute)
		}
	}
	if matches := hourAgoRegex.FindStringSubmatch(timeText); len(matches) > 1 {
		if hours, err := strconv.Atoi(matches[1]); err == nil && hours > 0 {
			return now.Add(-time.Duration(hours) * time.Hour)
		}
	}
	if matches := dayAgoRegex.FindStringSubmatch(timeText); len(matches) > 1 {
		if days, err := strconv.Atoi(matches[1]); err == nil && days > 0 {
			return now.Add(-time.Duration(days) * 24 * time.Hour)
		}
	}

	return now.Add(-1 * time.Hour)
}
