package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSearch()
	c.normalizeFiltering()
	c.normalizeEnrichment()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if c.Paths.SkipDir, err = expandPath(c.Paths.SkipDir); err != nil {
		return fmt.Errorf("paths.skip_dir: %w", err)
	}
	if c.Paths.CurrentDir, err = expandPath(c.Paths.CurrentDir); err != nil {
		return fmt.Errorf("paths.current_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("JOBSCOUT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeSearch() {
	c.Search.Queries = trimAll(c.Search.Queries)
	c.Search.Sites = lowerAll(trimAll(c.Search.Sites))
	c.Search.Countries = trimAll(c.Search.Countries)
	if c.Search.HoursOld <= 0 {
		c.Search.HoursOld = defaultSearchHoursOld
	}
	if c.Search.ResultsWanted <= 0 {
		c.Search.ResultsWanted = defaultSearchResultsWanted
	}
}

func (c *Config) normalizeFiltering() {
	c.Filtering.CompanyBlacklist = trimAll(c.Filtering.CompanyBlacklist)
	c.Filtering.TitleBlacklist = trimAll(c.Filtering.TitleBlacklist)
	c.Filtering.DescriptionBlacklist = trimAll(c.Filtering.DescriptionBlacklist)
	c.Filtering.AllowedCountries = trimAll(c.Filtering.AllowedCountries)
	c.Filtering.BlockedCountries = trimAll(c.Filtering.BlockedCountries)
	c.Filtering.RequiredLanguages = lowerAll(trimAll(c.Filtering.RequiredLanguages))
}

func (c *Config) normalizeEnrichment() {
	c.Enrichment.APIKey = strings.TrimSpace(c.Enrichment.APIKey)
	if c.Enrichment.APIKey == "" {
		if value, ok := os.LookupEnv("JOBSCOUT_ENRICHMENT_API_KEY"); ok {
			c.Enrichment.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Enrichment.APIKey = strings.TrimSpace(value)
		}
	}
	c.Enrichment.BaseURL = strings.TrimSpace(c.Enrichment.BaseURL)
	if c.Enrichment.BaseURL == "" {
		c.Enrichment.BaseURL = defaultEnrichmentBaseURL
	}
	c.Enrichment.Model = strings.TrimSpace(c.Enrichment.Model)
	if c.Enrichment.Model == "" {
		c.Enrichment.Model = defaultEnrichmentModel
	}
	if c.Enrichment.TimeoutSeconds <= 0 {
		c.Enrichment.TimeoutSeconds = defaultEnrichmentTimeout
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ProgressSampleInterval <= 0 {
		c.Pipeline.ProgressSampleInterval = defaultProgressSampleInterval
	}
	if c.Pipeline.SessionRetentionSeconds <= 0 {
		c.Pipeline.SessionRetentionSeconds = defaultSessionRetentionSeconds
	}
	if c.Pipeline.StartupWeight <= 0 && c.Pipeline.CollectionWeight <= 0 &&
		c.Pipeline.FilteringWeight <= 0 && c.Pipeline.EnrichmentWeight <= 0 {
		c.Pipeline.StartupWeight = defaultStartupWeight
		c.Pipeline.CollectionWeight = defaultCollectionWeight
		c.Pipeline.FilteringWeight = defaultFilteringWeight
		c.Pipeline.EnrichmentWeight = defaultEnrichmentWeight
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, value := range values {
		out[i] = strings.ToLower(value)
	}
	return out
}
