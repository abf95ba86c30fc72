package collect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
	"jobscout/internal/stage"
)

// Query is one cell of the collection matrix.
type Query struct {
	Term          string
	Site          string
	Country       string
	HoursOld      int
	ResultsWanted int
	RemoteOnly    bool
}

// Source scrapes one job board. Implementations must honor context
// cancellation: stop/pause cancels the collection context and the
// coordinator does not wait for forced teardown.
type Source interface {
	Name() string
	Search(ctx context.Context, query Query) ([]pipeline.JobPosting, error)
}

// Coordinator implements the collection stage executor over a set of sources.
type Coordinator struct {
	sources []Source
	logger  *slog.Logger

	mu       sync.Mutex
	progress map[string]float64
}

// NewCoordinator wires the registered sources.
func NewCoordinator(logger *slog.Logger, sources ...Source) *Coordinator {
	return &Coordinator{
		sources:  sources,
		logger:   logging.NewComponentLogger(logger, "collect"),
		progress: make(map[string]float64),
	}
}

// Progress reports the sub-progress (0-100) of an in-flight collection.
func (c *Coordinator) Progress(sessionID string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress[sessionID]
}

func (c *Coordinator) setProgress(sessionID string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress[sessionID] = value
}

func (c *Coordinator) clearProgress(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.progress, sessionID)
}

// Execute runs the collection matrix sequentially. Individual source
// failures are recorded and the remaining cells continue; the result is
// unsuccessful only when every cell failed.
func (c *Coordinator) Execute(ctx context.Context, req pipeline.SearchRequest) (*stage.Result, error) {
	defer c.clearProgress(req.SessionID)
	c.setProgress(req.SessionID, 0)

	queries := c.buildMatrix(req)
	result := &stage.Result{ItemsTotal: len(queries)}
	if len(queries) == 0 {
		result.Errors = append(result.Errors, "no collection sources matched the request")
		return result, nil
	}

	seen := make(map[string]struct{})
	succeeded := 0
	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		started := time.Now()
		source := c.sourceByName(query.Site)
		items, err := source.Search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			msg := fmt.Sprintf("%s: %q in %s: %v", query.Site, query.Term, query.Country, err)
			result.Errors = append(result.Errors, msg)
			c.logger.Warn("collection cell failed",
				logging.String(logging.FieldSource, query.Site),
				logging.String("query", query.Term),
				logging.String("country", query.Country),
				logging.Error(err),
			)
		} else {
			succeeded++
			added := 0
			for _, item := range items {
				if item.SearchInfo == "" {
					item.SearchInfo = describeQuery(query)
				}
				key := item.DedupKey()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				result.Items = append(result.Items, item)
				added++
			}
			c.logger.Info("collection cell finished",
				logging.String(logging.FieldSource, query.Site),
				logging.String("query", query.Term),
				logging.String("country", query.Country),
				logging.Int("found", len(items)),
				logging.Int("unique", added),
				logging.Duration("took", time.Since(started)),
			)
		}

		result.ItemsProcessed = i + 1
		c.setProgress(req.SessionID, float64(i+1)/float64(len(queries))*100)
	}

	result.Success = succeeded > 0
	return result, nil
}

func (c *Coordinator) buildMatrix(req pipeline.SearchRequest) []Query {
	countries := req.Countries
	if len(countries) == 0 {
		countries = []string{""}
	}

	var queries []Query
	for _, term := range req.Queries {
		for _, site := range req.Sites {
			if c.sourceByName(site) == nil {
				continue
			}
			for _, country := range countries {
				queries = append(queries, Query{
					Term:          term,
					Site:          strings.ToLower(strings.TrimSpace(site)),
					Country:       country,
					HoursOld:      req.HoursOld,
					ResultsWanted: req.ResultsWanted,
					RemoteOnly:    req.RemoteOnly,
				})
			}
		}
	}
	return queries
}

func (c *Coordinator) sourceByName(name string) Source {
	for _, source := range c.sources {
		if strings.EqualFold(source.Name(), strings.TrimSpace(name)) {
			return source
		}
	}
	return nil
}

func describeQuery(query Query) string {
	if query.Country == "" {
		return fmt.Sprintf("search(query=%q, site=%q)", query.Term, query.Site)
	}
	return fmt.Sprintf("search(query=%q, site=%q, country=%q)", query.Term, query.Site, query.Country)
}
