package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
	"jobscout/internal/stage"
)

const assessmentPrompt = `You are a job-search assistant. Given a job posting,
respond with JSON only, using this schema:
{"summary": "<two sentence summary of the role>",
 "score": <0-100 integer, how strong a match the posting is>,
 "reason": "<one sentence justification for the score>"}`

const maxDescriptionChars = 6000

// Assessment is the structured verdict produced for one posting.
type Assessment struct {
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// Enricher runs assessments over filtered postings.
type Enricher struct {
	client *Client
	logger *slog.Logger
}

// NewEnricher wires the enrichment executor.
func NewEnricher(client *Client, logger *slog.Logger) *Enricher {
	return &Enricher{
		client: client,
		logger: logging.NewComponentLogger(logger, "enrich"),
	}
}

// Ready reports whether enrichment can run at all.
func (e *Enricher) Ready() bool {
	return e != nil && e.client.Configured()
}

// Execute assesses each posting in order. A failed assessment leaves the
// posting unenriched and is recorded as a partial error; the stage result is
// successful as long as the run itself was not cancelled.
func (e *Enricher) Execute(ctx context.Context, items []pipeline.JobPosting) (*stage.Result, error) {
	result := &stage.Result{
		Success:    true,
		ItemsTotal: len(items),
		Items:      make([]pipeline.JobPosting, 0, len(items)),
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		assessment, err := e.assess(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s at %s: %v", item.Title, item.Company, err))
			e.logger.Warn("assessment failed",
				logging.String("title", item.Title),
				logging.String("company", item.Company),
				logging.Error(err),
			)
		} else {
			item.Enriched = true
			item.Summary = assessment.Summary
			item.Score = assessment.Score
		}

		result.Items = append(result.Items, item)
		result.ItemsProcessed++
	}
	return result, nil
}

func (e *Enricher) assess(ctx context.Context, item pipeline.JobPosting) (Assessment, error) {
	var empty Assessment
	content, err := e.client.CompleteJSON(ctx, assessmentPrompt, describePosting(item))
	if err != nil {
		return empty, err
	}
	var parsed Assessment
	if err := decodeModelJSON(content, &parsed); err != nil {
		return empty, fmt.Errorf("parse assessment: %w", err)
	}
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	parsed.Reason = strings.TrimSpace(parsed.Reason)
	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}
	return parsed, nil
}

func describePosting(item pipeline.JobPosting) string {
	description := item.Description
	if runes := []rune(description); len(runes) > maxDescriptionChars {
		description = string(runes[:maxDescriptionChars])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", item.Title)
	fmt.Fprintf(&b, "Company: %s\n", item.Company)
	if item.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", item.Location)
	}
	if item.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", item.URL)
	}
	fmt.Fprintf(&b, "Description:\n%s\n", description)
	return b.String()
}
