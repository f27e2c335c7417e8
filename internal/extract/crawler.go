package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// CrawlExtractor is the CHEAP tier: a scripted crawl of the company's site.
// It fetches the landing page plus a few same-host links and mines the
// visible text for profile fields.
type CrawlExtractor struct {
	client   *http.Client
	maxPages int
}

func NewCrawlExtractor(client *http.Client, maxPages int) *CrawlExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	if maxPages <= 0 {
		maxPages = 3
	}
	return &CrawlExtractor{client: client, maxPages: maxPages}
}

func (c *CrawlExtractor) Tier() domain.Tier { return domain.TierCheap }
func (c *CrawlExtractor) Cost() float64     { return domain.ExtractCostCrawl }
func (c *CrawlExtractor) Floor() float64    { return domain.CheapConfidenceFloor }

func (c *CrawlExtractor) Extract(ctx context.Context, dom string) (*domain.CompanyProfile, error) {
	text, title, err := c.Scrape(ctx, dom)
	if err != nil {
		return nil, err
	}

	name := titleCompanyName(title)
	if name == "" {
		name = companyNameFromDomain(dom)
	}

	return &domain.CompanyProfile{
		Name:       name,
		Industry:   guessIndustry(text),
		Size:       domain.SizeMedium,
		Location:   guessLocation(text),
		Products:   nil,
		Confidence: 0.7,
	}, nil
}

// Scrape fetches up to maxPages pages from the domain's site and returns
// the concatenated visible text plus the landing page title. The EXPENSIVE
// analyzer reuses this as its raw content source.
func (c *CrawlExtractor) Scrape(ctx context.Context, dom string) (text, title string, err error) {
	host := dom
	if registrable, psErr := publicsuffix.EffectiveTLDPlusOne(dom); psErr == nil {
		host = registrable
	}

	base := &url.URL{Scheme: "https", Host: host}
	queue := []string{base.String()}
	seen := map[string]bool{base.String(): true}

	var sb strings.Builder
	fetched := 0

	for len(queue) > 0 && fetched < c.maxPages {
		pageURL := queue[0]
		queue = queue[1:]

		pageText, pageTitle, links, fetchErr := c.fetchPage(ctx, pageURL, host)
		if fetchErr != nil {
			if fetched == 0 && len(queue) == 0 {
				return "", "", fetchErr
			}
			continue
		}
		fetched++

		sb.WriteString(pageText)
		sb.WriteString(" ")
		if title == "" {
			title = pageTitle
		}

		for _, link := range links {
			if !seen[link] {
				seen[link] = true
				queue = append(queue, link)
			}
		}
	}

	if fetched == 0 {
		return "", "", fmt.Errorf("no pages fetched from %s", host)
	}
	return sb.String(), title, nil
}

func (c *CrawlExtractor) fetchPage(ctx context.Context, pageURL, host string) (text, title string, links []string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", nil, err
	}
	req.Header.Set("User-Agent", "gatehouse-crawler/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	return parsePage(resp.Body, host)
}

// parsePage tokenizes the document, collecting visible text, the <title>,
// and same-host links.
func parsePage(r io.Reader, host string) (text, title string, links []string, err error) {
	tokenizer := html.NewTokenizer(r)
	var sb strings.Builder
	var inTitle, inSkip bool

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return strings.Join(strings.Fields(sb.String()), " "), title, links, nil
			}
			return "", "", nil, tokenizer.Err()
		case html.StartTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = true
			case "script", "style", "noscript":
				inSkip = true
			case "a":
				for _, attr := range token.Attr {
					if attr.Key == "href" {
						if link, ok := sameHostLink(attr.Val, host); ok {
							links = append(links, link)
						}
					}
				}
			}
		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "title":
				inTitle = false
			case "script", "style", "noscript":
				inSkip = false
			}
		case html.TextToken:
			if inSkip {
				continue
			}
			data := strings.TrimSpace(tokenizer.Token().Data)
			if data == "" {
				continue
			}
			if inTitle && title == "" {
				title = data
			}
			sb.WriteString(data)
			sb.WriteString(" ")
		}
	}
}

func sameHostLink(href, host string) (string, bool) {
	parsed, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "" && parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	if parsed.Host == "" {
		if !strings.HasPrefix(parsed.Path, "/") || parsed.Path == "/" {
			return "", false
		}
		return (&url.URL{Scheme: "https", Host: host, Path: parsed.Path}).String(), true
	}
	if parsed.Host != host && parsed.Host != "www."+host {
		return "", false
	}
	parsed.Fragment = ""
	return parsed.String(), true
}

// titleCompanyName strips the usual " - tagline" / " | tagline" suffix from
// a page title.
func titleCompanyName(title string) string {
	for _, sep := range []string{" | ", " - ", " – ", " :: "} {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return strings.TrimSpace(title)
}

var knownIndustries = []string{
	"Manufacturing", "Technology", "Healthcare", "Finance", "Retail",
	"Logistics", "Construction", "Energy", "Education", "Consulting",
}

func guessIndustry(text string) string {
	lower := strings.ToLower(text)
	for _, industry := range knownIndustries {
		if strings.Contains(lower, strings.ToLower(industry)) {
			return industry
		}
	}
	return "Unknown"
}

var locationPattern = regexp.MustCompile(`\b([A-Z][a-z]+,\s*[A-Z]{2})\b`)

func guessLocation(text string) string {
	if m := locationPattern.FindString(text); m != "" {
		return m
	}
	return "Unknown"
}
