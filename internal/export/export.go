// Package export writes session postings as one markdown file per posting.
// Filenames already present in the user-managed skip and current directories
// are not written again, so repeated exports never resurface a posting the
// user already triaged.
package export

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

// Result summarizes one export run.
type Result struct {
	Written int      `json:"written"`
	Skipped int      `json:"skipped"`
	Dir     string   `json:"dir"`
	Files   []string `json:"files,omitempty"`
}

// Exporter writes markdown files under the configured export directory.
type Exporter struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs an exporter.
func New(cfg *config.Config, logger *slog.Logger) *Exporter {
	return &Exporter{cfg: cfg, logger: logging.NewComponentLogger(logger, "export")}
}

// Export writes one file per posting, skipping names the user already holds
// in the skip, current, or export directories.
func (e *Exporter) Export(items []pipeline.JobPosting) (*Result, error) {
	dir := e.cfg.Paths.ExportDir
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("export directory is not configured")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	known := e.knownFilenames()
	result := &Result{Dir: dir}
	for _, item := range items {
		name := item.ExportFilename()
		if _, seen := known[strings.ToLower(name)]; seen {
			result.Skipped++
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(renderMarkdown(item)), 0o644); err != nil {
			return result, fmt.Errorf("write %s: %w", name, err)
		}
		known[strings.ToLower(name)] = struct{}{}
		result.Written++
		result.Files = append(result.Files, name)
	}

	e.logger.Info("export finished",
		logging.Int("written", result.Written),
		logging.Int("skipped", result.Skipped),
		logging.String("dir", dir),
	)
	return result, nil
}

// knownFilenames collects every markdown filename the user already has.
// Unreadable directories count as empty.
func (e *Exporter) knownFilenames() map[string]struct{} {
	known := make(map[string]struct{})
	for _, dir := range []string{e.cfg.Paths.ExportDir, e.cfg.Paths.SkipDir, e.cfg.Paths.CurrentDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
				continue
			}
			known[strings.ToLower(entry.Name())] = struct{}{}
		}
	}
	return known
}

func renderMarkdown(item pipeline.JobPosting) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(item.Title))
	fmt.Fprintf(&b, "**Company:** %s\n\n", strings.TrimSpace(item.Company))
	if item.Location != "" {
		fmt.Fprintf(&b, "**Location:** %s\n\n", item.Location)
	}
	if item.Site != "" {
		fmt.Fprintf(&b, "**Site:** %s\n\n", item.Site)
	}
	if item.URL != "" {
		fmt.Fprintf(&b, "**URL:** %s\n\n", item.URL)
	}
	if item.PostedAt != nil {
		fmt.Fprintf(&b, "**Posted:** %s\n\n", item.PostedAt.Format(time.DateOnly))
	}
	if item.SearchInfo != "" {
		fmt.Fprintf(&b, "**Found by:** %s\n\n", item.SearchInfo)
	}
	if item.Enriched {
		fmt.Fprintf(&b, "**Score:** %.0f\n\n", item.Score)
		if item.Summary != "" {
			fmt.Fprintf(&b, "## Summary\n\n%s\n\n", item.Summary)
		}
	}
	if item.Description != "" {
		fmt.Fprintf(&b, "## Description\n\n%s\n", item.Description)
	}
	return b.String()
}
