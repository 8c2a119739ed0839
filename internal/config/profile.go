package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/SignalBot/internal/advisor"
	"github.com/Alias1177/SignalBot/internal/consensus"
	"github.com/Alias1177/SignalBot/internal/detector"
	"github.com/Alias1177/SignalBot/internal/outcome"
)

// Advisor kinds
const (
	AdvisorLLM     = "llm"
	AdvisorRules   = "rules"
	AdvisorCaption = "caption"
)

// AdvisorConfig describes one panel member.
type AdvisorConfig struct {
	ID   string `yaml:"id" validate:"required"`
	Kind string `yaml:"kind" default:"llm" validate:"oneof=llm rules caption"`

	// OpenAI-compatible endpoint; empty BaseURL means api.openai.com.
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env" default:"OPENAI_API_KEY"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" default:"300" validate:"gte=1"`

	// Caption voter history size.
	History int `yaml:"history" default:"50" validate:"gte=1"`
}

// Profile holds the strategy thresholds and the advisory panel.
type Profile struct {
	Name          string             `yaml:"name" default:"default"`
	Detector      detector.Config    `yaml:"detector"`
	Consensus     consensus.Config   `yaml:"consensus"`
	Outcome       outcome.Config     `yaml:"outcome"`
	Rules         advisor.RuleConfig `yaml:"rules"`
	PromptCandles int                `yaml:"prompt_candles" default:"20" validate:"gte=1"`
	Advisors      []AdvisorConfig    `yaml:"advisors" validate:"unique=ID,dive"`
}

// DefaultAdvisors is the panel used when the profile lists none.
func DefaultAdvisors() []AdvisorConfig {
	return []AdvisorConfig{
		{ID: "gpt", Kind: AdvisorLLM, APIKeyEnv: "OPENAI_API_KEY", MaxTokens: 300, History: 50},
		{ID: "rules", Kind: AdvisorRules, APIKeyEnv: "OPENAI_API_KEY", MaxTokens: 300, History: 50},
		{ID: "caption", Kind: AdvisorCaption, APIKeyEnv: "OPENAI_API_KEY", MaxTokens: 300, History: 50},
	}
}

var validate = validator.New()

// LoadProfile reads a YAML profile. A missing file yields the built-in defaults.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("Profile not found, using built-in defaults")
		data = nil
	} else if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return ParseProfile(data)
}

// ParseProfile fills defaults, overlays the YAML document and validates the result.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	// Defaults go first so explicit false/zero values in YAML survive.
	if err := defaults.Set(&p); err != nil {
		return nil, fmt.Errorf("profile defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	if len(p.Advisors) == 0 {
		p.Advisors = DefaultAdvisors()
	}
	for i := range p.Advisors {
		if err := defaults.Set(&p.Advisors[i]); err != nil {
			return nil, fmt.Errorf("advisor defaults: %w", err)
		}
	}

	switch p.Consensus.PanelSize {
	case 0:
		p.Consensus.PanelSize = len(p.Advisors)
	case len(p.Advisors):
	default:
		return nil, fmt.Errorf("invalid profile: consensus.panel_size %d does not match %d advisors",
			p.Consensus.PanelSize, len(p.Advisors))
	}

	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &p, nil
}

// AdvisorIDs returns the configured voter ids in order.
func (p *Profile) AdvisorIDs() []string {
	ids := make([]string, len(p.Advisors))
	for i, a := range p.Advisors {
		ids[i] = a.ID
	}
	return ids
}
