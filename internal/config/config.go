package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Questions struct {
		TTL string `yaml:"ttl"`
	} `yaml:"questions"`
	Game struct {
		MaxPlayers        int    `yaml:"max_players"`
		RoundsPerGame     int    `yaml:"rounds_per_game"`
		CountdownSeconds  int    `yaml:"countdown_seconds"`
		QuestionTime      string `yaml:"question_time"`
		RevealHold        string `yaml:"reveal_hold"`
		FastAnswerWindow  string `yaml:"fast_answer_window"`
		SpeedBonus        int    `yaml:"speed_bonus"`
		IdleTimeout       string `yaml:"idle_timeout"`
		FinishedRetention string `yaml:"finished_retention"`
		ReapInterval      string `yaml:"reap_interval"`
	} `yaml:"game"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
