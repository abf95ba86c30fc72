package config

const (
	defaultDataDir                 = "~/.local/share/jobscout/data"
	defaultLogDir                  = "~/.local/share/jobscout/logs"
	defaultAPIBind                 = "127.0.0.1:7519"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultSearchHoursOld          = 168
	defaultSearchResultsWanted     = 100
	defaultEnrichmentBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultEnrichmentModel         = "google/gemini-3-flash-preview"
	defaultEnrichmentReferer       = "https://github.com/jobscout/jobscout"
	defaultEnrichmentTitle         = "Jobscout Enrichment"
	defaultEnrichmentTimeout       = 60
	defaultProgressSampleInterval  = 2
	defaultSessionRetentionSeconds = 300
	defaultStartupWeight           = 10
	defaultCollectionWeight        = 30
	defaultFilteringWeight         = 30
	defaultEnrichmentWeight        = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Search: Search{
			Queries:       []string{"devops", "platform engineer"},
			Sites:         []string{"linkedin", "indeed"},
			Countries:     []string{"Ukraine"},
			HoursOld:      defaultSearchHoursOld,
			ResultsWanted: defaultSearchResultsWanted,
			RemoteOnly:    true,
		},
		Enrichment: Enrichment{
			BaseURL:        defaultEnrichmentBaseURL,
			Model:          defaultEnrichmentModel,
			Referer:        defaultEnrichmentReferer,
			Title:          defaultEnrichmentTitle,
			TimeoutSeconds: defaultEnrichmentTimeout,
		},
		Pipeline: Pipeline{
			ProgressSampleInterval:  defaultProgressSampleInterval,
			SessionRetentionSeconds: defaultSessionRetentionSeconds,
			StartupWeight:           defaultStartupWeight,
			CollectionWeight:        defaultCollectionWeight,
			FilteringWeight:         defaultFilteringWeight,
			EnrichmentWeight:        defaultEnrichmentWeight,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
