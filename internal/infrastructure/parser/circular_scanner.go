package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"circularscan/internal/domain"
	"circularscan/internal/labelmap"
	"circularscan/internal/scanner"
)

const detailWorkers = 4

// CircularScanner crawls the paginated circular list and resolves each
// entry's detail page into a canonical document.
type CircularScanner struct {
	client *http.Client
	labels *labelmap.Map
	logger *slog.Logger
}

// NewCircularScanner wires an HTTP client and the label map.
func NewCircularScanner(client *http.Client, labels *labelmap.Map, logger *slog.Logger) *CircularScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &CircularScanner{client: client, labels: labels, logger: logger}
}

// Name identifies the strategy inside the registry.
func (c *CircularScanner) Name() string {
	return "customs"
}

// Scan walks list pages sequentially from page 1 and stops at the first page
// without accepted rows or at the configured page limit. A page failure
// returns the documents collected so far with a PageError for that page.
func (c *CircularScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Document, error) {
	if req.ListURL == "" {
		return nil, fmt.Errorf("no list url provided for site %s", req.SiteName)
	}

	maxPages := req.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	results := make([]domain.Document, 0)
	seen := map[string]struct{}{}

	for page := 1; page <= maxPages; page++ {
		pageURL, err := buildPageURL(req.ListURL, page)
		if err != nil {
			return results, &domain.PageError{Page: page, Err: err}
		}

		listDoc, err := c.fetchDocument(ctx, pageURL)
		if err != nil {
			return results, &domain.PageError{Page: page, Err: err}
		}

		rows := extractRows(listDoc, pageURL)
		if len(rows) == 0 {
			break
		}

		c.resolveDetails(ctx, page, rows)

		for _, row := range rows {
			if _, ok := seen[row.doc.DocumentNumber]; ok {
				continue
			}
			seen[row.doc.DocumentNumber] = struct{}{}
			results = append(results, row.doc)
		}
	}

	return results, nil
}

// listRow pairs a positionally-parsed list entry with its detail link.
type listRow struct {
	doc       domain.Document
	detailURL string
}

// extractRows accepts rows with at least four cells and a non-empty first
// cell; columns 0..3 map to number, agency, date, and title in that order.
// List rows carry no labels, so the column schema is fixed.
func extractRows(doc *goquery.Document, pageURL string) []*listRow {
	base, _ := url.Parse(pageURL)

	var rows []*listRow
	doc.Find("table tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 4 {
			return
		}

		number := strings.TrimSpace(cells.Eq(0).Text())
		if number == "" {
			return
		}

		row := &listRow{
			doc: domain.Document{
				DocumentNumber: number,
				IssuingAgency:  strings.TrimSpace(cells.Eq(1).Text()),
				IssueDate:      strings.TrimSpace(cells.Eq(2).Text()),
				Title:          strings.TrimSpace(cells.Eq(3).Text()),
			},
		}

		if href, exists := tr.Find("a[href]").First().Attr("href"); exists {
			row.detailURL = absoluteURL(base, href)
			row.doc.SourceURL = row.detailURL
		}

		rows = append(rows, row)
	})

	return rows
}

// resolveDetails fetches detail pages with a bounded fan-out. A failed detail
// page keeps the partial document from the list row, with FileURL left empty.
func (c *CircularScanner) resolveDetails(ctx context.Context, page int, rows []*listRow) {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(detailWorkers)

	for _, row := range rows {
		if row.detailURL == "" {
			continue
		}
		row := row
		group.Go(func() error {
			if err := c.enrichFromDetail(groupCtx, row); err != nil {
				c.warn("detail page failed, keeping partial document",
					"page", page, "document", row.doc.DocumentNumber, "error", err)
			}
			return nil
		})
	}

	_ = group.Wait()
}

func (c *CircularScanner) enrichFromDetail(ctx context.Context, row *listRow) error {
	detailDoc, err := c.fetchDocument(ctx, row.detailURL)
	if err != nil {
		return err
	}

	base, _ := url.Parse(row.detailURL)
	resolved := map[domain.CanonicalField]struct{}{}

	detailDoc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return
		}

		field, ok := c.labels.Resolve(cells.Eq(0).Text())
		if !ok {
			return // unmapped labels are dropped, not fatal
		}
		if _, done := resolved[field]; done {
			return // first occurrence on the page wins
		}
		resolved[field] = struct{}{}

		value := cells.Eq(1)
		if field == domain.FieldFileURL {
			if href, exists := value.Find("a[href]").First().Attr("href"); exists {
				row.doc.FileURL = absoluteURL(base, href)
			}
			return
		}
		applyField(&row.doc, field, strings.TrimSpace(value.Text()))
	})

	if row.doc.FileURL == "" {
		if href, exists := detailDoc.Find(`a[href$=".pdf"]`).First().Attr("href"); exists {
			row.doc.FileURL = absoluteURL(base, href)
		}
	}

	return nil
}

func applyField(doc *domain.Document, field domain.CanonicalField, value string) {
	if value == "" {
		return
	}
	switch field {
	case domain.FieldDocumentNumber:
		doc.DocumentNumber = value
	case domain.FieldTitle:
		doc.Title = value
	case domain.FieldIssuingAgency:
		doc.IssuingAgency = value
	case domain.FieldIssueDate:
		doc.IssueDate = value
	}
}

func (c *CircularScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "CircularScan/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func buildPageURL(listURL string, page int) (string, error) {
	parsed, err := url.Parse(listURL)
	if err != nil {
		return "", fmt.Errorf("invalid list url %s: %w", listURL, err)
	}

	query := parsed.Query()
	query.Set("page", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func absoluteURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (c *CircularScanner) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
