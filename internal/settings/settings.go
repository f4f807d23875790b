package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/TheKrainBow/mnk/engine"
)

// File is the on-disk configuration: engine tuning plus the HTTP surface.
type File struct {
	Engine engine.Config `json:"engine" yaml:"engine"`
	Server Server        `json:"server" yaml:"server"`
}

type Server struct {
	Addr            string  `json:"addr" yaml:"addr" validate:"required"`
	LogLevel        string  `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	LogPretty       bool    `json:"log_pretty" yaml:"log_pretty"`
	AIRatePerSecond float64 `json:"ai_rate_per_second" yaml:"ai_rate_per_second" validate:"gt=0"`
	AIBurst         int     `json:"ai_burst" yaml:"ai_burst" validate:"gte=1"`
	DefaultBudgetMs int     `json:"default_budget_ms" yaml:"default_budget_ms" validate:"gte=1,lte=3600000"`
	MaxGames        int     `json:"max_games" yaml:"max_games" validate:"gte=1"`
	// AllowedOrigins lists the browser origins accepted on /ws/search. Empty
	// means same-origin only; "*" accepts any origin.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" validate:"dive,required"`
}

func Default() File {
	return File{
		Engine: engine.DefaultConfig(),
		Server: Server{
			Addr:            ":8080",
			LogLevel:        "info",
			LogPretty:       true,
			AIRatePerSecond: 4,
			AIBurst:         8,
			DefaultBudgetMs: 2000,
			MaxGames:        1024,
		},
	}
}

func (s Server) DefaultBudget() time.Duration {
	return time.Duration(s.DefaultBudgetMs) * time.Millisecond
}

var settingsValidate = validator.New()

func (f File) Validate() error {
	if err := settingsValidate.Struct(f.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := f.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}

// Load starts from Default, overlays the YAML file at path (a missing file
// or empty path keeps the defaults), then MNK_* environment variables.
func Load(path string) (File, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadFromEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *File) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadFromEnv(cfg *File) error {
	if v := os.Getenv("MNK_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MNK_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("MNK_MAX_SEARCH_SECONDS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("MNK_MAX_SEARCH_SECONDS: %w", err)
		}
		cfg.Engine.MaxSearchSeconds = f
	}
	if v := os.Getenv("MNK_MAX_SEARCH_DEPTH"); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MNK_MAX_SEARCH_DEPTH: %w", err)
		}
		cfg.Engine.MaxSearchDepth = i
	}
	if v := os.Getenv("MNK_SEED"); v != "" {
		u, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("MNK_SEED: %w", err)
		}
		cfg.Engine.Seed = u
	}
	if v := os.Getenv("MNK_USE_SYMMETRY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MNK_USE_SYMMETRY: %w", err)
		}
		cfg.Engine.UseSymmetry = b
	}
	return nil
}
