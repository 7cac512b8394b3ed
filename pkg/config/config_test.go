package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"comitebot/pkg/action"
	"comitebot/pkg/routing"

	"github.com/stretchr/testify/require"
)

var requiredEnv = map[string]string{
	"TELEGRAM_TOKEN":                "12345:secret",
	"BOT_USERNAME":                  "@ComiteBot",
	"GROUP_ID":                      "-1001",
	"TEMA_BOTON_CONSULTAS_COMITE":   "3",
	"TEMA_BOTON_SUGERENCIAS_COMITE": "4",
	"GRUPO_EXTERNO_ID":              "-2002",
	"TEMA_CONSULTAS_EXTERNO":        "5",
	"TEMA_SUGERENCIAS_EXTERNO":      "6",
}

var optionalEnv = []string{
	envFileVar,
	"TEMA_DOCUMENTACION",
	"ADMIN_USER_IDS",
	"TELEGRAM_PROXY",
	"SESSION_STORE",
	"SESSION_TTL",
	"DATABASE_URL",
	"DYNAMODB_TABLE",
	"FORWARD_TIMEOUT",
	"FORWARD_MAX_ATTEMPTS",
	"GATEWAY_HOST",
	"GATEWAY_PORT",
	"COMITEBOT_LOG_FORMAT",
	"COMITEBOT_LOG_LEVEL",
	"COMITEBOT_LOG_ADD_SOURCE",
}

func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()

	for _, key := range optionalEnv {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	for key, value := range requiredEnv {
		t.Setenv(key, value)
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	setEnv(t, map[string]string{
		"ADMIN_USER_IDS":       " 11, 22 ,,11",
		"TEMA_DOCUMENTACION":   "8",
		"COMITEBOT_LOG_FORMAT": "json",
	})

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.Equal(t, "12345:secret", cfg.Telegram.Token)
	require.Equal(t, "ComiteBot", cfg.Telegram.BotUsername)
	require.Equal(t, []string{"11", "22"}, cfg.Telegram.AdminIDs)
	require.Equal(t, int64(-1001), cfg.Groups.SourceGroupID)
	require.Equal(t, 8, cfg.Groups.DocumentationTopic)
	require.Equal(t, StoreMemory, cfg.Session.Store)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Equal(t, 10*time.Second, cfg.Forward.Timeout)
	require.Equal(t, 1, cfg.Forward.MaxAttempts)
	require.Equal(t, 8080, cfg.Gateway.Port)
	require.Equal(t, "json", cfg.Logging.Format)

	require.Equal(t, map[action.Type]routing.Destination{
		action.Query:      {GroupID: -2002, TopicID: 5},
		action.Suggestion: {GroupID: -2002, TopicID: 6},
	}, cfg.Routes())
	require.Equal(t, 3, cfg.EntryTopic(action.Query))
	require.Equal(t, 4, cfg.EntryTopic(action.Suggestion))
}

func TestLoadConfigReportsEveryProblem(t *testing.T) {
	setEnv(t, map[string]string{
		"TELEGRAM_TOKEN":         "no-separator",
		"GROUP_ID":               "1001",
		"TEMA_CONSULTAS_EXTERNO": "0",
		"FORWARD_MAX_ATTEMPTS":   "0",
	})

	_, err := LoadConfig("")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalid))

	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	joined := strings.Join(cfgErr.Problems, "\n")
	require.Contains(t, joined, "TELEGRAM_TOKEN is malformed")
	require.Contains(t, joined, "GROUP_ID (1001) must be a negative group id")
	require.Contains(t, joined, "TEMA_CONSULTAS_EXTERNO (0) must be a positive topic id")
	require.Contains(t, joined, "FORWARD_MAX_ATTEMPTS must be at least 1")
}

func TestLoadConfigMissingToken(t *testing.T) {
	setEnv(t, map[string]string{"TELEGRAM_TOKEN": "  "})

	_, err := LoadConfig("")
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "TELEGRAM_TOKEN is required")
}

func TestLoadConfigRejectsNonNumericGroup(t *testing.T) {
	setEnv(t, map[string]string{"GROUP_ID": "abc"})

	_, err := LoadConfig("")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestLoadConfigAcceptsAdminUsernames(t *testing.T) {
	setEnv(t, map[string]string{"ADMIN_USER_IDS": "11, @Marta_L, jefa_comite"})

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, []string{"11", "@Marta_L", "jefa_comite"}, cfg.Telegram.AdminIDs)
}

func TestLoadConfigRejectsMalformedAdmins(t *testing.T) {
	for _, admin := range []string{"bad name!", "@abc", "ana-maria", "@" + strings.Repeat("a", 33)} {
		setEnv(t, map[string]string{"ADMIN_USER_IDS": admin})

		_, err := LoadConfig("")
		require.ErrorIs(t, err, ErrInvalid, admin)
		require.Contains(t, err.Error(), "is neither a numeric user id nor a Telegram username", admin)
	}
}

func TestLoadConfigStoreBackendRequirements(t *testing.T) {
	setEnv(t, map[string]string{"SESSION_STORE": "Postgres"})
	_, err := LoadConfig("")
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "DATABASE_URL is required")

	setEnv(t, map[string]string{"SESSION_STORE": "dynamodb"})
	_, err = LoadConfig("")
	require.Contains(t, err.Error(), "DYNAMODB_TABLE is required")

	setEnv(t, map[string]string{"SESSION_STORE": "redis"})
	_, err = LoadConfig("")
	require.Contains(t, err.Error(), `SESSION_STORE "redis"`)

	setEnv(t, map[string]string{"SESSION_STORE": "postgres", "DATABASE_URL": "postgres://localhost/comite"})
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, StorePostgres, cfg.Session.Store)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	setEnv(t, nil)
	_ = os.Unsetenv("BOT_USERNAME")

	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_USERNAME=FromFileBot\nGATEWAY_PORT=9090\n"), 0o600))
	t.Setenv(envFileVar, path)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "FromFileBot", cfg.Telegram.BotUsername)
	require.Equal(t, 9090, cfg.Gateway.Port)
}

func TestLoadConfigEnvFileDoesNotOverrideEnvironment(t *testing.T) {
	setEnv(t, nil)

	path := filepath.Join(t.TempDir(), "bot.env")
	require.NoError(t, os.WriteFile(path, []byte("BOT_USERNAME=FromFileBot\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "ComiteBot", cfg.Telegram.BotUsername)
}

func TestLoadConfigMissingExplicitEnvFile(t *testing.T) {
	setEnv(t, nil)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	require.Equal(t, []string{"1", "2", "3"}, parseCSV([]string{" 1 ", "", "2,3", "1"}))
	require.Empty(t, parseCSV(nil))
}
