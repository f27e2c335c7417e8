package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

const searchEndpoint = "https://www.googleapis.com/customsearch/v1"

// SearchExtractor is the FREE tier: a search-index lookup that yields a
// sparse, low-confidence profile. Good enough only for well-known companies.
type SearchExtractor struct {
	client   *http.Client
	apiKey   string
	engineID string
}

func NewSearchExtractor(client *http.Client, apiKey, engineID string) *SearchExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	return &SearchExtractor{client: client, apiKey: apiKey, engineID: engineID}
}

func (s *SearchExtractor) Tier() domain.Tier { return domain.TierFree }
func (s *SearchExtractor) Cost() float64     { return domain.ExtractCostSearch }
func (s *SearchExtractor) Floor() float64    { return domain.FreeConfidenceFloor }

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"items"`
}

func (s *SearchExtractor) Extract(ctx context.Context, dom string) (*domain.CompanyProfile, error) {
	if s.apiKey == "" || s.engineID == "" {
		return nil, fmt.Errorf("search extractor not configured")
	}

	query := fmt.Sprintf(`site:%s OR "%s" company profile`, dom, dom)
	reqURL := fmt.Sprintf("%s?key=%s&cx=%s&q=%s",
		searchEndpoint, url.QueryEscape(s.apiKey), url.QueryEscape(s.engineID), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if len(body.Items) == 0 {
		return nil, fmt.Errorf("no search results for %s", dom)
	}

	var snippets strings.Builder
	for _, item := range body.Items {
		snippets.WriteString(item.Title)
		snippets.WriteString(" ")
		snippets.WriteString(item.Snippet)
		snippets.WriteString(" ")
	}
	text := snippets.String()

	return &domain.CompanyProfile{
		Name:       companyNameFromDomain(dom),
		Industry:   guessIndustry(text),
		Size:       domain.SizeMedium,
		Location:   guessLocation(text),
		Products:   nil,
		Confidence: 0.5,
	}, nil
}

// companyNameFromDomain capitalizes the domain's leftmost label. A weak
// heuristic, reflected in the tier's confidence.
func companyNameFromDomain(dom string) string {
	label := dom
	if idx := strings.Index(dom, "."); idx > 0 {
		label = dom[:idx]
	}
	if label == "" {
		return dom
	}
	return strings.ToUpper(label[:1]) + label[1:]
}
