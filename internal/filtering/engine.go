package filtering

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

// Skip reasons, in rule priority order. The first matching rule wins and
// later rules are not evaluated.
const (
	ReasonCompanyBlacklisted     = "company_blacklisted"
	ReasonTitleBlacklisted       = "title_blacklisted"
	ReasonDescriptionBlacklisted = "description_blacklisted"
	ReasonCountryNotAllowed      = "country_not_allowed"
	ReasonLanguageMismatch       = "language_mismatch"
)

// cyrillicPattern matches Russian and Ukrainian letters, including і, ї, є, ґ.
var cyrillicPattern = regexp.MustCompile(`[а-яёіїєґъь]`)

// Engine evaluates the filtering rules against a batch of postings.
type Engine struct {
	settings config.Filtering
	matcher  language.Matcher
	wantCyrl bool
	logger   *slog.Logger
}

// NewEngine compiles the rule set. Language tags that fail to parse are
// dropped with a warning rather than failing construction.
func NewEngine(settings config.Filtering, logger *slog.Logger) *Engine {
	engine := &Engine{
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "filtering"),
	}

	tags := make([]language.Tag, 0, len(settings.RequiredLanguages))
	for _, raw := range settings.RequiredLanguages {
		tag, err := language.Parse(raw)
		if err != nil {
			engine.logger.Warn("ignoring unparsable required language",
				logging.String("language", raw),
				logging.Error(err),
			)
			continue
		}
		tags = append(tags, tag)
		if script, _ := tag.Script(); script.String() == "Cyrl" {
			engine.wantCyrl = true
		}
	}
	if len(tags) > 0 {
		engine.matcher = language.NewMatcher(tags)
	}
	return engine
}

// Execute partitions the batch. A malformed posting never fails the batch:
// unparsable auxiliary metadata is treated as absent.
func (e *Engine) Execute(ctx context.Context, items []pipeline.JobPosting) (*pipeline.FilterOutcome, error) {
	outcome := &pipeline.FilterOutcome{
		Stats: pipeline.FilteringStats{Reasons: make(map[string]int)},
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		default:
		}

		reason, skipped := e.skipReason(item)
		if skipped {
			outcome.Skipped = append(outcome.Skipped, item)
			outcome.Stats.SkippedCount++
			outcome.Stats.Reasons[reason]++
			e.logger.Debug("posting skipped",
				logging.String("company", item.Company),
				logging.String("title", item.Title),
				logging.String("reason", reason),
			)
			continue
		}
		outcome.Filtered = append(outcome.Filtered, item)
		outcome.Stats.FilteredCount++
	}
	return outcome, nil
}

// skipReason applies the rules in priority order and short-circuits on the
// first rejection.
func (e *Engine) skipReason(item pipeline.JobPosting) (string, bool) {
	if containsAny(item.Company, e.settings.CompanyBlacklist) {
		return ReasonCompanyBlacklisted, true
	}
	if containsAny(item.Title, e.settings.TitleBlacklist) {
		return ReasonTitleBlacklisted, true
	}
	if containsAny(item.Description, e.settings.DescriptionBlacklist) {
		return ReasonDescriptionBlacklisted, true
	}

	meta := e.sideData(item)
	if !e.countryAllowed(item, meta) {
		return ReasonCountryNotAllowed, true
	}
	if !e.languageAccepted(item, meta) {
		return ReasonLanguageMismatch, true
	}
	return "", false
}

// sideData decodes the auxiliary metadata a source attached to a posting.
// Malformed JSON yields the zero value, never an error.
type sideData struct {
	Language string `json:"language"`
	Country  string `json:"country"`
}

func (e *Engine) sideData(item pipeline.JobPosting) sideData {
	trimmed := strings.TrimSpace(item.MetadataJSON)
	if trimmed == "" {
		return sideData{}
	}
	var meta sideData
	if err := json.Unmarshal([]byte(trimmed), &meta); err != nil {
		e.logger.Debug("posting metadata unparsable, treating as absent",
			logging.String("company", item.Company),
			logging.String("title", item.Title),
		)
		return sideData{}
	}
	return meta
}

func (e *Engine) countryAllowed(item pipeline.JobPosting, meta sideData) bool {
	country := firstNonEmpty(item.Country, meta.Country, countryFromLocation(item.Location))
	if country == "" {
		// Unknown origin passes: absent data is not a rejection.
		return true
	}
	for _, blocked := range e.settings.BlockedCountries {
		if strings.EqualFold(country, blocked) {
			return false
		}
	}
	if len(e.settings.AllowedCountries) == 0 {
		return true
	}
	for _, allowed := range e.settings.AllowedCountries {
		if strings.EqualFold(country, allowed) {
			return true
		}
	}
	return false
}

func (e *Engine) languageAccepted(item pipeline.JobPosting, meta sideData) bool {
	if e.matcher == nil {
		return true
	}

	declared := firstNonEmpty(item.Language, meta.Language)
	if declared != "" {
		tag, err := language.Parse(declared)
		if err == nil {
			_, _, conf := e.matcher.Match(tag)
			return conf > language.No
		}
		// Unparsable declaration falls through to script detection.
	}

	// No usable declaration: fall back to script evidence in the text. Only
	// Cyrillic requirements have a script detector; other requirements reject
	// undeclared postings.
	if e.wantCyrl {
		combined := strings.ToLower(item.Company + " " + item.Title + " " + item.Description)
		return cyrillicPattern.MatchString(combined)
	}
	return false
}

// containsAny reports whether text contains any entry case-insensitively.
func containsAny(text string, entries []string) bool {
	if text == "" || len(entries) == 0 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(entry)) {
			return true
		}
	}
	return false
}

func countryFromLocation(location string) string {
	parts := strings.Split(location, ",")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-1])
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
