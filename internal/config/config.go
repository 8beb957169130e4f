package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Quiz struct {
		NumQuestions  int      `yaml:"num_questions"`
		Difficulty    string   `yaml:"difficulty"`
		QuestionTypes []string `yaml:"question_types"`
		TimerSeconds  int      `yaml:"timer_seconds"`
		PollInterval  string   `yaml:"poll_interval"`
	} `yaml:"quiz"`
	Timer struct {
		Grace string `yaml:"grace"`
	} `yaml:"timer"`
}

// Load reads YAML config from path. A missing file yields a zero config so
// everything can come from flags and env instead.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DurationOr parses a duration string or returns the fallback if empty or
// invalid.
func DurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
