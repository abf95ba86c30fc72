package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateFiltering(); err != nil {
		return err
	}
	if err := c.validateEnrichment(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q is not a host:port value: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateSearch() error {
	if len(c.Search.Queries) == 0 {
		return errors.New("search.queries must contain at least one query")
	}
	if len(c.Search.Sites) == 0 {
		return errors.New("search.sites must contain at least one site")
	}
	if c.Search.HoursOld <= 0 {
		return errors.New("search.hours_old must be positive")
	}
	return nil
}

func (c *Config) validateFiltering() error {
	for _, country := range c.Filtering.AllowedCountries {
		for _, blocked := range c.Filtering.BlockedCountries {
			if strings.EqualFold(country, blocked) {
				return fmt.Errorf("filtering: country %q appears in both allowed_countries and blocked_countries", country)
			}
		}
	}
	return nil
}

func (c *Config) validateEnrichment() error {
	// An absent API key is legal at config time: enrichment availability is a
	// per-session precondition checked by the orchestrator.
	if strings.TrimSpace(c.Enrichment.BaseURL) == "" {
		return errors.New("enrichment.base_url must be set")
	}
	if c.Enrichment.TimeoutSeconds <= 0 {
		return errors.New("enrichment.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ProgressSampleInterval <= 0 {
		return errors.New("pipeline.progress_sample_interval must be positive")
	}
	if c.Pipeline.SessionRetentionSeconds <= 0 {
		return errors.New("pipeline.session_retention_seconds must be positive")
	}
	total := c.Pipeline.StartupWeight + c.Pipeline.CollectionWeight +
		c.Pipeline.FilteringWeight + c.Pipeline.EnrichmentWeight
	if total <= 0 {
		return errors.New("pipeline: stage weights must sum to a positive value")
	}
	return nil
}
