package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"comitebot/pkg/action"
	"comitebot/pkg/routing"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	envFileVar     = "COMITEBOT_ENV_FILE"
	defaultEnvFile = ".env"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

// ErrInvalid matches every *Error with errors.Is.
var ErrInvalid = errors.New("invalid configuration")

// Error lists every configuration problem found at startup.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return ErrInvalid.Error()
	}

	return ErrInvalid.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// Config is the root runtime configuration, read from the environment.
type Config struct {
	Telegram TelegramConfig
	Groups   GroupsConfig
	Session  SessionConfig
	Forward  ForwardConfig
	Gateway  GatewayConfig
	Logging  LoggingConfig
}

// TelegramConfig configures the bot identity and transport.
type TelegramConfig struct {
	Token       string   `env:"TELEGRAM_TOKEN"`
	BotUsername string   `env:"BOT_USERNAME"`
	Proxy       string   `env:"TELEGRAM_PROXY"`
	// AdminIDs lists numeric user ids or usernames (with or without "@").
	AdminIDs    []string `env:"ADMIN_USER_IDS" envSeparator:","`
}

// GroupsConfig holds the source group (entry buttons) and the destination group
// (committee inbox) with their topic ids.
type GroupsConfig struct {
	SourceGroupID        int64 `env:"GROUP_ID"`
	QueryEntryTopic      int   `env:"TEMA_BOTON_CONSULTAS_COMITE"`
	SuggestionEntryTopic int   `env:"TEMA_BOTON_SUGERENCIAS_COMITE"`
	DocumentationTopic   int   `env:"TEMA_DOCUMENTACION"`

	DestinationGroupID   int64 `env:"GRUPO_EXTERNO_ID"`
	QueryInboxTopic      int   `env:"TEMA_CONSULTAS_EXTERNO"`
	SuggestionInboxTopic int   `env:"TEMA_SUGERENCIAS_EXTERNO"`
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Store         string        `env:"SESSION_STORE" envDefault:"memory"`
	TTL           time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	DatabaseURL   string        `env:"DATABASE_URL"`
	DynamoDBTable string        `env:"DYNAMODB_TABLE"`
}

// ForwardConfig bounds outbound delivery to the destination group.
type ForwardConfig struct {
	Timeout     time.Duration `env:"FORWARD_TIMEOUT" envDefault:"10s"`
	MaxAttempts int           `env:"FORWARD_MAX_ATTEMPTS" envDefault:"1"`
}

// GatewayConfig configures the status HTTP server bind address.
type GatewayConfig struct {
	Host string `env:"GATEWAY_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"GATEWAY_PORT" envDefault:"8080"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string `env:"COMITEBOT_LOG_FORMAT"`
	Level     string `env:"COMITEBOT_LOG_LEVEL"`
	AddSource bool   `env:"COMITEBOT_LOG_ADD_SOURCE"`
}

// LoadConfig loads an optional env file, parses the environment, and validates
// the result. Any problem is returned as a *Error (or a parse error) and the
// process must not start.
func LoadConfig(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, &Error{Problems: []string{err.Error()}}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadEnvFile populates the process environment from a dotenv file without
// overriding variables that are already set.
//
// Precedence is the explicit path, then COMITEBOT_ENV_FILE, then ./.env. Only
// the implicit ./.env may be absent.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(envFileVar))
	}

	if path == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}

	return nil
}

func (c *Config) normalize() {
	c.Telegram.Token = strings.TrimSpace(c.Telegram.Token)
	c.Telegram.BotUsername = strings.TrimPrefix(strings.TrimSpace(c.Telegram.BotUsername), "@")
	c.Telegram.Proxy = strings.TrimSpace(c.Telegram.Proxy)
	c.Telegram.AdminIDs = parseCSV(c.Telegram.AdminIDs)
	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
}

// Validate reports every invalid or missing setting at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch {
	case c.Telegram.Token == "":
		add("TELEGRAM_TOKEN is required")
	case !strings.Contains(c.Telegram.Token, ":"):
		add("TELEGRAM_TOKEN is malformed (expected <id>:<secret>)")
	}
	if c.Telegram.BotUsername == "" {
		add("BOT_USERNAME is required")
	}
	for _, admin := range c.Telegram.AdminIDs {
		if !validAdmin(admin) {
			add("ADMIN_USER_IDS entry %q is neither a numeric user id nor a Telegram username", admin)
		}
	}

	requireGroup := func(name string, id int64) {
		if id >= 0 {
			add("%s (%d) must be a negative group id", name, id)
		}
	}
	requireTopic := func(name string, id int) {
		if id <= 0 {
			add("%s (%d) must be a positive topic id", name, id)
		}
	}
	requireGroup("GROUP_ID", c.Groups.SourceGroupID)
	requireTopic("TEMA_BOTON_CONSULTAS_COMITE", c.Groups.QueryEntryTopic)
	requireTopic("TEMA_BOTON_SUGERENCIAS_COMITE", c.Groups.SuggestionEntryTopic)
	requireGroup("GRUPO_EXTERNO_ID", c.Groups.DestinationGroupID)
	requireTopic("TEMA_CONSULTAS_EXTERNO", c.Groups.QueryInboxTopic)
	requireTopic("TEMA_SUGERENCIAS_EXTERNO", c.Groups.SuggestionInboxTopic)
	if c.Groups.DocumentationTopic < 0 {
		add("TEMA_DOCUMENTACION (%d) must be a positive topic id", c.Groups.DocumentationTopic)
	}

	switch c.Session.Store {
	case StoreMemory:
	case StorePostgres:
		if strings.TrimSpace(c.Session.DatabaseURL) == "" {
			add("DATABASE_URL is required when SESSION_STORE=postgres")
		}
	case StoreDynamoDB:
		if strings.TrimSpace(c.Session.DynamoDBTable) == "" {
			add("DYNAMODB_TABLE is required when SESSION_STORE=dynamodb")
		}
	default:
		add("SESSION_STORE %q is not one of memory, postgres, dynamodb", c.Session.Store)
	}
	if c.Session.TTL < 0 {
		add("SESSION_TTL must not be negative")
	}

	if c.Forward.Timeout <= 0 {
		add("FORWARD_TIMEOUT must be greater than zero")
	}
	if c.Forward.MaxAttempts < 1 {
		add("FORWARD_MAX_ATTEMPTS must be at least 1")
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		add("GATEWAY_PORT (%d) is out of range", c.Gateway.Port)
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}

	return nil
}

// Routes builds the action → destination table for the router.
func (c *Config) Routes() map[action.Type]routing.Destination {
	return map[action.Type]routing.Destination{
		action.Query:      {GroupID: c.Groups.DestinationGroupID, TopicID: c.Groups.QueryInboxTopic},
		action.Suggestion: {GroupID: c.Groups.DestinationGroupID, TopicID: c.Groups.SuggestionInboxTopic},
	}
}

// EntryTopic returns the source-group topic that hosts the entry button for t.
func (c *Config) EntryTopic(t action.Type) int {
	switch t {
	case action.Query:
		return c.Groups.QueryEntryTopic
	case action.Suggestion:
		return c.Groups.SuggestionEntryTopic
	default:
		return 0
	}
}

// usernamePattern follows Telegram's username rules: 5 to 32 letters, digits or
// underscores.
var usernamePattern = regexp.MustCompile(`^@?[A-Za-z0-9_]{5,32}$`)

func validAdmin(value string) bool {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	return usernamePattern.MatchString(value)
}

// parseCSV trims values and drops empties and duplicates, keeping order.
func parseCSV(values []string) []string {
	clean := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" || slices.Contains(clean, trimmed) {
				continue
			}
			clean = append(clean, trimmed)
		}
	}

	return slices.Clip(clean)
}
