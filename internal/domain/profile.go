package domain

import "time"

// CompanySize buckets follow employee headcount: Small (<50),
// Medium (50-500), Large (>500).
type CompanySize string

const (
	SizeSmall  CompanySize = "Small"
	SizeMedium CompanySize = "Medium"
	SizeLarge  CompanySize = "Large"
)

// CompanyProfile is a snapshot produced by the extraction cascade.
// Re-extraction creates a new profile rather than mutating an old one.
type CompanyProfile struct {
	Domain           string        `json:"domain"`
	Name             string        `json:"name"`
	Industry         string        `json:"industry"`
	Size             CompanySize   `json:"size"`
	Location         string        `json:"location"`
	Products         []string      `json:"products"`
	Confidence       float64       `json:"confidence"`
	ExtractionMethod Tier          `json:"extraction_method"`
	ExtractionCost   float64       `json:"extraction_cost"`
	ExtractionTime   time.Duration `json:"-"`
	ExtractedAt      time.Time     `json:"extracted_at"`
}

// Confidence floors per extraction tier. The EXPENSIVE tier is the last
// resort and accepts whatever confidence it reports.
const (
	FreeConfidenceFloor  = 0.7
	CheapConfidenceFloor = 0.6
)

// Unit costs per extraction tier, in dollars. The EXPENSIVE figure is the
// cumulative spend of the request: it includes the crawl the analyzer runs
// internally.
const (
	ExtractCostSearch  = 0.0
	ExtractCostCrawl   = 0.05
	ExtractCostAnalyze = 0.25
)
