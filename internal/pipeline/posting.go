package pipeline

import (
	"regexp"
	"strings"
	"time"
)

// JobPosting is one collected vacancy flowing through the pipeline.
type JobPosting struct {
	ID          string     `json:"id,omitempty"`
	Site        string     `json:"site"`
	URL         string     `json:"url,omitempty"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location,omitempty"`
	Country     string     `json:"country,omitempty"`
	Description string     `json:"description,omitempty"`
	Language    string     `json:"language,omitempty"`
	PostedAt    *time.Time `json:"postedAt,omitempty"`
	SearchInfo  string     `json:"searchInfo,omitempty"`

	// MetadataJSON carries auxiliary side-data from the source verbatim.
	// It may be malformed; consumers must treat unparsable metadata as absent.
	MetadataJSON string `json:"metadata,omitempty"`

	// Enrichment output.
	Enriched bool    `json:"enriched,omitempty"`
	Summary  string  `json:"summary,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// DedupKey identifies duplicates across sources: first posting per
// (company, title) pair wins.
func (p JobPosting) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(p.Company)) + "|" + strings.ToLower(strings.TrimSpace(p.Title))
}

var filenameHostileChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// ExportFilename builds the markdown export filename for a posting:
// "Company - Title - Site.md" with filesystem-reserved characters removed.
func (p JobPosting) ExportFilename() string {
	name := strings.Join([]string{
		fallback(p.Company, "Unknown"),
		fallback(p.Title, "Unknown"),
		fallback(p.Site, "Unknown"),
	}, " - ")
	name = filenameHostileChars.ReplaceAllString(name, "")
	name = strings.NewReplacer("\n", " ", "\r", "").Replace(name)
	return strings.TrimSpace(name) + ".md"
}

func fallback(value, alt string) string {
	if strings.TrimSpace(value) == "" {
		return alt
	}
	return value
}

// SearchRequest describes one search session's inputs.
type SearchRequest struct {
	SessionID     string   `json:"sessionId,omitempty"`
	Queries       []string `json:"queries"`
	Sites         []string `json:"sites"`
	Countries     []string `json:"countries,omitempty"`
	HoursOld      int      `json:"hoursOld,omitempty"`
	ResultsWanted int      `json:"resultsWanted,omitempty"`
	RemoteOnly    bool     `json:"remoteOnly,omitempty"`
}

// FilteringStats is the operator-facing outcome histogram of the filtering
// stage: exactly one reason per skipped posting.
type FilteringStats struct {
	FilteredCount int            `json:"filteredCount"`
	SkippedCount  int            `json:"skippedCount"`
	Reasons       map[string]int `json:"reasons"`
}

// FilterOutcome partitions a batch into passed and skipped postings.
type FilterOutcome struct {
	Filtered []JobPosting
	Skipped  []JobPosting
	Stats    FilteringStats
	Errors   []string
}
