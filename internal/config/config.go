package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds runtime configuration for the trivia bot.
type App struct {
	Name                    string        `env:"BOT_NAME" envDefault:"trivia-bot"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	MetricsAddr             string        `env:"METRICS_ADDR" envDefault:"0.0.0.0:9090"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Gateway Gateway
	Trivia  Trivia
	Redis   Redis
}

// Gateway points at the chat backend the bot connects to.
type Gateway struct {
	URL   string `env:"GATEWAY_URL,notEmpty"`
	BotID string `env:"GATEWAY_BOT_ID" envDefault:"trivia-bot"`
}

// Trivia groups gameplay defaults and the question source.
type Trivia struct {
	BaseURL      string        `env:"OPENTDB_BASE_URL" envDefault:"https://opentdb.com"`
	FetchTimeout time.Duration `env:"QUESTION_FETCH_TIMEOUT" envDefault:"4s"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"500ms"`
	DefaultCount int           `env:"DEFAULT_QUESTION_COUNT" envDefault:"5"`
	MaxCount     int           `env:"MAX_QUESTIONS" envDefault:"50"`
}

// Redis is optional; when Addr is set the active-player registry is shared
// across bot instances.
type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Load parses environment variables into App config.
func Load() (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
