package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol).
	// All providers (openai, deepseek, siliconflow, ollama, ...) use the same config.
	LLMProvider string // Provider identifier: openai, deepseek, siliconflow, openrouter, ollama
	LLMAPIKey   string // API key; empty disables the LLM and enables the demo extractor
	LLMBaseURL  string // Base URL (optional, has a default per provider)
	LLMModel    string // Model name: gpt-4o, deepseek-chat, etc.
	LLMTimeout  int    // LLM request timeout in seconds (default: 30)

	// Calendar provider configuration.
	CalendarProvider   string // "local" (store-backed) or "google"
	GoogleClientID     string
	GoogleClientSecret string
	GoogleTokenDir     string // directory holding token-<user>.json files

	// Telegram channel configuration. Empty token disables the channel.
	TelegramBotToken string

	// Scheduler knobs.
	LookaheadDays         int // free-slot search horizon when no deadline given (default: 7)
	MaxClarifyRounds      int // clarification rounds before abandoning a request (default: 3)
	AvailabilityTTLSecs   int // availability cache TTL in seconds (default: 120)
	SessionIdleTimeout    int // per-user conversation state idle eviction in seconds (default: 1800)
	TurnsPerMinutePerUser int // per-user rate limit (default: 20)

	Mode    string
	Addr    string
	Port    int
	Data    string
	Driver  string
	DSN     string
	Version string
}

// Provider default configurations for the LLM.
// Used when LLM_BASE_URL or LLM_MODEL are not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsLLMEnabled returns true if an LLM API key is configured.
// Without a key the intent extractor runs in demo mode.
func (p *Profile) IsLLMEnabled() bool {
	return p.LLMAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("CALBOT_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("CALBOT_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("CALBOT_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("CALBOT_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("CALBOT_LLM_TIMEOUT_SECONDS", 30)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("Unknown LLM provider, using default: openai", "provider", p.LLMProvider)
			p.LLMProvider = "openai"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	p.CalendarProvider = getEnvOrDefault("CALBOT_CALENDAR_PROVIDER", "local")
	p.GoogleClientID = getEnvOrDefault("CALBOT_GOOGLE_CLIENT_ID", "")
	p.GoogleClientSecret = getEnvOrDefault("CALBOT_GOOGLE_CLIENT_SECRET", "")
	p.GoogleTokenDir = getEnvOrDefault("CALBOT_GOOGLE_TOKEN_DIR", ".")

	p.TelegramBotToken = getEnvOrDefault("CALBOT_TELEGRAM_BOT_TOKEN", "")

	p.LookaheadDays = getEnvOrDefaultInt("CALBOT_LOOKAHEAD_DAYS", 7)
	p.MaxClarifyRounds = getEnvOrDefaultInt("CALBOT_MAX_CLARIFY_ROUNDS", 3)
	p.AvailabilityTTLSecs = getEnvOrDefaultInt("CALBOT_AVAILABILITY_TTL_SECONDS", 120)
	p.SessionIdleTimeout = getEnvOrDefaultInt("CALBOT_SESSION_IDLE_TIMEOUT_SECONDS", 1800)
	p.TurnsPerMinutePerUser = getEnvOrDefaultInt("CALBOT_TURNS_PER_MINUTE_PER_USER", 20)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.CalendarProvider != "local" && p.CalendarProvider != "google" {
		return errors.Errorf("unknown calendar provider %q (want local or google)", p.CalendarProvider)
	}
	if p.CalendarProvider == "google" && p.GoogleClientID == "" {
		return errors.New("google calendar provider requires CALBOT_GOOGLE_CLIENT_ID")
	}

	if p.MaxClarifyRounds <= 0 {
		p.MaxClarifyRounds = 3
	}
	if p.LookaheadDays <= 0 {
		p.LookaheadDays = 7
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("calbot_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	return nil
}
