package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// yamlConfigDTO mirrors configDTO for job-level override files. Seed URLs
// and allowed hosts are expressed as plain strings in YAML since url.URL
// does not round-trip through yaml.v3 the way it does through encoding/json.
type yamlConfigDTO struct {
	SeedURLs          []string `yaml:"seedUrls"`
	AllowedHosts      []string `yaml:"allowedHosts"`
	AllowedPathPrefix []string `yaml:"allowedPathPrefix"`

	MaxDepth               int           `yaml:"maxDepth"`
	MaxPages               int           `yaml:"maxPages"`
	Concurrency            int           `yaml:"concurrency"`
	BaseDelay              time.Duration `yaml:"baseDelay"`
	Jitter                 time.Duration `yaml:"jitter"`
	RandomSeed             int64         `yaml:"randomSeed"`
	MaxAttempt             int           `yaml:"maxAttempt"`
	BackoffInitialDuration time.Duration `yaml:"backoffInitialDuration"`
	BackoffMultiplier      float64       `yaml:"backoffMultiplier"`
	BackoffMaxDuration     time.Duration `yaml:"backoffMaxDuration"`

	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
	OutputDir string        `yaml:"outputDir"`
	DryRun    bool          `yaml:"dryRun"`

	BodySpecificityBias                 float64 `yaml:"bodySpecificityBias"`
	LinkDensityThreshold                float64 `yaml:"linkDensityThreshold"`
	ScoreMultiplierNonWhitespaceDivisor float64 `yaml:"scoreMultiplierNonWhitespaceDivisor"`
	ScoreMultiplierParagraphs           float64 `yaml:"scoreMultiplierParagraphs"`
	ScoreMultiplierHeadings             float64 `yaml:"scoreMultiplierHeadings"`
	ScoreMultiplierCodeBlocks           float64 `yaml:"scoreMultiplierCodeBlocks"`
	ScoreMultiplierListItems            float64 `yaml:"scoreMultiplierListItems"`
	ThresholdMinNonWhitespace           int     `yaml:"thresholdMinNonWhitespace"`
	ThresholdMinHeadings                int     `yaml:"thresholdMinHeadings"`
	ThresholdMinParagraphsOrCode        int     `yaml:"thresholdMinParagraphsOrCode"`
	ThresholdMaxLinkDensity             float64 `yaml:"thresholdMaxLinkDensity"`
}

// WithYAMLOverrideFile loads a job-level override file (YAML) on top of the
// package defaults, the same override-merge semantics as WithConfigFile's
// JSON path: most zero-valued fields in the file leave the default untouched,
// but allowedPathPrefix, dryRun and thresholdMinHeadings are always taken
// from the file.
func WithYAMLOverrideFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	var yamlDTO yamlConfigDTO
	if err := yaml.Unmarshal(raw, &yamlDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	dto, err := yamlDTOToConfigDTO(yamlDTO)
	if err != nil {
		return Config{}, err
	}

	return newConfigFromDTO(dto)
}

func yamlDTOToConfigDTO(y yamlConfigDTO) (configDTO, error) {
	seedURLs := make([]url.URL, 0, len(y.SeedURLs))
	for _, raw := range y.SeedURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			return configDTO{}, fmt.Errorf("%w: invalid seed url %q: %s", ErrConfigParsingFail, raw, err.Error())
		}
		seedURLs = append(seedURLs, *parsed)
	}

	allowedHosts := make(map[string]struct{}, len(y.AllowedHosts))
	for _, h := range y.AllowedHosts {
		allowedHosts[h] = struct{}{}
	}

	return configDTO{
		SeedURLs:                            seedURLs,
		AllowedHosts:                        allowedHosts,
		AllowedPathPrefix:                   y.AllowedPathPrefix,
		MaxDepth:                            y.MaxDepth,
		MaxPages:                            y.MaxPages,
		Concurrency:                         y.Concurrency,
		BaseDelay:                           y.BaseDelay,
		Jitter:                              y.Jitter,
		RandomSeed:                          y.RandomSeed,
		MaxAttempt:                          y.MaxAttempt,
		BackoffInitialDuration:              y.BackoffInitialDuration,
		BackoffMultiplier:                   y.BackoffMultiplier,
		BackoffMaxDuration:                  y.BackoffMaxDuration,
		Timeout:                             y.Timeout,
		UserAgent:                           y.UserAgent,
		OutputDir:                           y.OutputDir,
		DryRun:                              y.DryRun,
		BodySpecificityBias:                 y.BodySpecificityBias,
		LinkDensityThreshold:                y.LinkDensityThreshold,
		ScoreMultiplierNonWhitespaceDivisor: y.ScoreMultiplierNonWhitespaceDivisor,
		ScoreMultiplierParagraphs:           y.ScoreMultiplierParagraphs,
		ScoreMultiplierHeadings:             y.ScoreMultiplierHeadings,
		ScoreMultiplierCodeBlocks:           y.ScoreMultiplierCodeBlocks,
		ScoreMultiplierListItems:            y.ScoreMultiplierListItems,
		ThresholdMinNonWhitespace:           y.ThresholdMinNonWhitespace,
		ThresholdMinHeadings:                y.ThresholdMinHeadings,
		ThresholdMinParagraphsOrCode:        y.ThresholdMinParagraphsOrCode,
		ThresholdMaxLinkDensity:             y.ThresholdMaxLinkDensity,
	}, nil
}
