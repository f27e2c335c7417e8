package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gatehouse-io/gatehouse/internal/domain"
)

// Scraper provides raw site content for the analyzer. The crawl extractor
// satisfies it, so the EXPENSIVE tier is built atop the CHEAP tier's
// content rather than fetching separately.
type Scraper interface {
	Scrape(ctx context.Context, dom string) (text, title string, err error)
}

// AnalyzeExtractor is the EXPENSIVE tier: a generative deep analysis of the
// crawled site content. Last resort, accepted unconditionally with whatever
// confidence the model reports.
type AnalyzeExtractor struct {
	client  *openai.Client
	scraper Scraper
	model   string
}

func NewAnalyzeExtractor(client *openai.Client, scraper Scraper, model string) *AnalyzeExtractor {
	if model == "" {
		model = openai.GPT4o
	}
	return &AnalyzeExtractor{client: client, scraper: scraper, model: model}
}

func (a *AnalyzeExtractor) Tier() domain.Tier { return domain.TierExpensive }

// Cost reports the true cumulative spend of the tier: the internal crawl
// plus the model call.
func (a *AnalyzeExtractor) Cost() float64  { return domain.ExtractCostAnalyze }
func (a *AnalyzeExtractor) Floor() float64 { return -1 }

const analyzePromptFmt = `Analyze this company's website content and extract structured data.

Domain: %s
Page title: %s
Site content: %s

Provide a company profile in JSON with these fields:
- name: Company name
- industry: Primary industry (be specific)
- size: "Small" (<50 employees), "Medium" (50-500), or "Large" (>500)
- location: Primary location
- products: Array of main products/services
- confidence: Your confidence score (0-1)

Respond with ONLY valid JSON, no other text.`

// maxContentChars bounds the prompt so a sprawling site cannot blow the
// model's context window.
const maxContentChars = 12000

type analyzedProfile struct {
	Name       string   `json:"name"`
	Industry   string   `json:"industry"`
	Size       string   `json:"size"`
	Location   string   `json:"location"`
	Products   []string `json:"products"`
	Confidence float64  `json:"confidence"`
}

func (a *AnalyzeExtractor) Extract(ctx context.Context, dom string) (*domain.CompanyProfile, error) {
	if a.client == nil {
		return nil, fmt.Errorf("analyzer not configured")
	}

	text, title, err := a.scraper.Scrape(ctx, dom)
	if err != nil {
		return nil, fmt.Errorf("scrape for analysis: %w", err)
	}
	if len(text) > maxContentChars {
		text = text[:maxContentChars]
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(analyzePromptFmt, dom, title, text),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("analysis returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed analyzedProfile
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return nil, fmt.Errorf("parse analysis output: %w", err)
	}

	return &domain.CompanyProfile{
		Name:       parsed.Name,
		Industry:   parsed.Industry,
		Size:       parseSize(parsed.Size),
		Location:   parsed.Location,
		Products:   parsed.Products,
		Confidence: clamp01(parsed.Confidence),
	}, nil
}

func parseSize(s string) domain.CompanySize {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return domain.SizeSmall
	case "large":
		return domain.SizeLarge
	default:
		return domain.SizeMedium
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
