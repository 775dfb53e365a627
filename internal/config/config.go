package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Channels maps each panel to the platform channel that hosts it.
type Channels struct {
	Planning      string `yaml:"planning"`
	Absences      string `yaml:"absences"`
	Links         string `yaml:"links"`
	RulesGeneral  string `yaml:"rules_general"`
	RulesPlatform string `yaml:"rules_platform"`
}

// Duration decodes YAML strings like "30m" or "1h" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// RuleDoc is a write-once rules panel: a title plus a document link posted to
// its channel only if nobody wrote there first.
type RuleDoc struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
	URL   string `yaml:"url"`
}

// Config is the deployment configuration loaded from YAML. Infra settings
// (ports, DSNs, brokers) stay on the environment; this file carries the
// community-specific wiring the bot owner edits.
type Config struct {
	Channels Channels `yaml:"channels"`

	// OversightRef receives a private notification for every committed
	// appointment.
	OversightRef string `yaml:"oversight_ref"`

	// Hours are the selectable hour labels offered in the negotiation UI.
	Hours []string `yaml:"hours"`

	// DefaultHour backs unparsable hour labels (0-23).
	DefaultHour int `yaml:"default_hour"`

	// DecisionDeadline bounds how long the addressed party may sit on a
	// proposal before the session silently lapses.
	DecisionDeadline Duration `yaml:"decision_deadline"`

	// SweepCron schedules the passive sweep + panel refresh.
	SweepCron string `yaml:"sweep_cron"`

	RulesGeneral  RuleDoc `yaml:"rules_general"`
	RulesPlatform RuleDoc `yaml:"rules_platform"`
}

func Default() *Config {
	return &Config{
		Channels: Channels{
			Planning: "planning",
			Absences: "absences",
			Links:    "links",
		},
		Hours:            []string{"17h00", "18h00", "19h00", "20h00", "21h00", "22h00"},
		DefaultHour:      18,
		DecisionDeadline: Duration(time.Hour),
		SweepCron:        "@every 5m",
	}
}

// Load reads the YAML config at path, falling back to defaults when path is
// empty or the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.DefaultHour < 0 || cfg.DefaultHour > 23 {
		return nil, fmt.Errorf("default_hour must be 0-23 (got %d)", cfg.DefaultHour)
	}
	if cfg.DecisionDeadline <= 0 {
		cfg.DecisionDeadline = Duration(time.Hour)
	}
	if cfg.SweepCron == "" {
		cfg.SweepCron = "@every 5m"
	}
	return cfg, nil
}
