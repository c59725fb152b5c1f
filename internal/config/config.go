package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	JWTSecret      string   `env:"JWT_SECRET" envDefault:"your-secret-key-change-this-in-production"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	RedisURL      string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	BoardWidth  int `env:"BOARD_WIDTH" envDefault:"15"`
	BoardHeight int `env:"BOARD_HEIGHT" envDefault:"15"`
	WinLength   int `env:"WIN_LENGTH" envDefault:"5"`

	TurnTimeout         time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
	DecisionWindow      time.Duration `env:"DECISION_WINDOW" envDefault:"20s"`
	SessionTickInterval time.Duration `env:"SESSION_TICK_INTERVAL" envDefault:"20ms"`
	MatchmakingInterval time.Duration `env:"MATCHMAKING_INTERVAL" envDefault:"500ms"`
	TicketTTL           time.Duration `env:"TICKET_TTL" envDefault:"5m"`
	LobbyTimeout        time.Duration `env:"LOBBY_TIMEOUT" envDefault:"2m"`
	CleanupInterval     time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1m"`

	DefaultRules  string `env:"DEFAULT_RULES" envDefault:"standard"`
	DefaultRating int    `env:"DEFAULT_RATING" envDefault:"1000"`

	Matchmaking MatchmakingConfig `envPrefix:"MM_"`
}

// MatchmakingConfig holds the tunable quality-score policy.
type MatchmakingConfig struct {
	BaseGap           float64 `env:"BASE_GAP" envDefault:"100"`
	TimeWeight        float64 `env:"TIME_WEIGHT" envDefault:"25"`
	CreditWeight      float64 `env:"CREDIT_WEIGHT" envDefault:"50"`
	ScoreBase         float64 `env:"SCORE_BASE" envDefault:"100"`
	StdDevWeight      float64 `env:"STDDEV_WEIGHT" envDefault:"-1"`
	MaxDeltaPenalty   float64 `env:"MAX_DELTA_PENALTY" envDefault:"25"`
	ScoreCreditWeight float64 `env:"SCORE_CREDIT_WEIGHT" envDefault:"2"`
	HeadcountWeight   float64 `env:"HEADCOUNT_WEIGHT" envDefault:"1"`
	MinScore          float64 `env:"MIN_SCORE" envDefault:"40"`
}

var AppConfig *Config

// LoadEnvFiles loads the given .env file, or .env / ../.env when none is given.
// Missing files are not an error.
func LoadEnvFiles(path string) bool {
	if path != "" {
		return godotenv.Load(path) == nil
	}
	if err := godotenv.Load(); err != nil {
		return godotenv.Load("../.env") == nil
	}
	return true
}

func LoadConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse config")
	}

	// Append simple_protocol for PgBouncer compatibility
	if cfg.DatabaseURL != "" {
		if u, err := url.Parse(cfg.DatabaseURL); err == nil && strings.HasPrefix(u.Scheme, "postgres") {
			q := u.Query()
			if q.Get("sslmode") == "" {
				q.Set("sslmode", "disable")
				u.RawQuery = q.Encode()
				cfg.DatabaseURL = u.String()
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConfig = &cfg
	return AppConfig, nil
}

func (c *Config) Validate() error {
	if c.BoardWidth <= 0 || c.BoardHeight <= 0 {
		return eris.Errorf("invalid board size %dx%d", c.BoardWidth, c.BoardHeight)
	}
	if c.WinLength <= 0 || (c.WinLength > c.BoardWidth && c.WinLength > c.BoardHeight) {
		return eris.Errorf("win length %d does not fit a %dx%d board", c.WinLength, c.BoardWidth, c.BoardHeight)
	}
	intervals := map[string]time.Duration{
		"TURN_TIMEOUT":          c.TurnTimeout,
		"DECISION_WINDOW":       c.DecisionWindow,
		"SESSION_TICK_INTERVAL": c.SessionTickInterval,
		"MATCHMAKING_INTERVAL":  c.MatchmakingInterval,
		"TICKET_TTL":            c.TicketTTL,
		"LOBBY_TIMEOUT":         c.LobbyTimeout,
		"CLEANUP_INTERVAL":      c.CleanupInterval,
	}
	for key, d := range intervals {
		if d <= 0 {
			return eris.Errorf("%s must be positive, got %s", key, d)
		}
	}
	return nil
}
