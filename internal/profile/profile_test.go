package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "https://api.openai.com/v1", p.LLMBaseURL)
	assert.Equal(t, "gpt-4o", p.LLMModel)
	assert.Equal(t, "local", p.CalendarProvider)
	assert.Equal(t, 7, p.LookaheadDays)
	assert.Equal(t, 3, p.MaxClarifyRounds)
	assert.Equal(t, 20, p.TurnsPerMinutePerUser)
	assert.False(t, p.IsLLMEnabled())
}

func TestFromEnvProviderDefaults(t *testing.T) {
	t.Setenv("CALBOT_LLM_PROVIDER", "deepseek")
	t.Setenv("CALBOT_LLM_API_KEY", "sk-test")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "https://api.deepseek.com", p.LLMBaseURL)
	assert.Equal(t, "deepseek-chat", p.LLMModel)
	assert.True(t, p.IsLLMEnabled())
}

func TestFromEnvUnknownProviderFallsBack(t *testing.T) {
	t.Setenv("CALBOT_LLM_PROVIDER", "mystery")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "openai", p.LLMProvider)
}

func TestFromEnvExplicitOverrides(t *testing.T) {
	t.Setenv("CALBOT_LLM_BASE_URL", "http://localhost:11434")
	t.Setenv("CALBOT_LLM_MODEL", "llama3.1")
	t.Setenv("CALBOT_LOOKAHEAD_DAYS", "14")

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "http://localhost:11434", p.LLMBaseURL)
	assert.Equal(t, "llama3.1", p.LLMModel)
	assert.Equal(t, 14, p.LookaheadDays)
}

func TestValidateDefaultsAndDSN(t *testing.T) {
	p := &Profile{
		Mode:             "dev",
		CalendarProvider: "local",
		Driver:           "sqlite",
		Data:             t.TempDir(),
	}

	require.NoError(t, p.Validate())
	assert.Contains(t, p.DSN, "calbot_dev.db")
	assert.Equal(t, 3, p.MaxClarifyRounds)
	assert.Equal(t, 7, p.LookaheadDays)
}

func TestValidateUnknownModeBecomesDemo(t *testing.T) {
	p := &Profile{
		Mode:             "staging",
		CalendarProvider: "local",
		Data:             t.TempDir(),
	}

	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
}

func TestValidateCalendarProvider(t *testing.T) {
	p := &Profile{Mode: "dev", CalendarProvider: "outlook", Data: t.TempDir()}
	assert.Error(t, p.Validate())

	p = &Profile{Mode: "dev", CalendarProvider: "google", Data: t.TempDir()}
	assert.Error(t, p.Validate())

	p = &Profile{Mode: "dev", CalendarProvider: "google", GoogleClientID: "id", Data: t.TempDir()}
	assert.NoError(t, p.Validate())
}
