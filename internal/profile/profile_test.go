package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileEnvVars = []string{
	"PARKSENSE_MODE", "PARKSENSE_TIMEZONE", "TZ", "PARKSENSE_CURRENCY",
	"PARKSENSE_LOG_FORMAT", "PARKSENSE_LOG_LEVEL",
	"PARKSENSE_OCR_ENABLED", "PARKSENSE_OCR_TESSERACT_PATH", "PARKSENSE_OCR_TESSDATA_PATH",
	"TESSDATA_PREFIX", "PARKSENSE_OCR_LANGUAGES", "PARKSENSE_OCR_RATE_LIMIT", "PARKSENSE_OCR_RAW_IMAGE",
	"PARKSENSE_CACHE_CAPACITY", "PARKSENSE_CACHE_TTL", "PARKSENSE_REDIS_URL", "REDIS_URL",
	"PARKSENSE_REMINDER_LEAD", "PARKSENSE_REMINDER_INTERVAL",
	"PARKSENSE_CONFIRM_POLICY", "PARKSENSE_BATCH_CONCURRENCY",
}

// clearEnv blanks every variable FromEnv reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range profileEnvVars {
		t.Setenv(key, "")
	}
}

func TestProfileDefaults(t *testing.T) {
	clearEnv(t)

	p := &Profile{}
	p.FromEnv()

	assert.Equal(t, "dev", p.Mode)
	assert.Equal(t, "UTC", p.Timezone)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "text", p.LogFormat)
	assert.Equal(t, "info", p.LogLevel)
	assert.False(t, p.OCREnabled)
	assert.Equal(t, "tesseract", p.TesseractPath)
	assert.Equal(t, "eng", p.OCRLanguages)
	assert.Equal(t, 2.0, p.OCRRateLimit)
	assert.False(t, p.OCRRawImage)
	assert.Equal(t, 256, p.CacheCapacity)
	assert.Equal(t, time.Hour, p.CacheTTL)
	assert.False(t, p.IsRedisEnabled())
	assert.Equal(t, 10*time.Minute, p.ReminderLead)
	assert.Equal(t, 30*time.Second, p.ReminderInterval)
	assert.Equal(t, 4, p.BatchConcurrency)
	assert.True(t, p.IsDev())
}

func TestProfileFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVar   string
		envValue string
		field    func(*Profile) any
		expected any
	}{
		{"timezone", "PARKSENSE_TIMEZONE", "America/New_York", func(p *Profile) any { return p.Timezone }, "America/New_York"},
		{"TZ fallback", "TZ", "Europe/Paris", func(p *Profile) any { return p.Timezone }, "Europe/Paris"},
		{"ocr enabled", "PARKSENSE_OCR_ENABLED", "true", func(p *Profile) any { return p.OCREnabled }, true},
		{"tessdata fallback", "TESSDATA_PREFIX", "/usr/share/tessdata", func(p *Profile) any { return p.TessdataPath }, "/usr/share/tessdata"},
		{"rate limit", "PARKSENSE_OCR_RATE_LIMIT", "0.5", func(p *Profile) any { return p.OCRRateLimit }, 0.5},
		{"cache ttl", "PARKSENSE_CACHE_TTL", "5m", func(p *Profile) any { return p.CacheTTL }, 5 * time.Minute},
		{"bad ttl keeps default", "PARKSENSE_CACHE_TTL", "soon", func(p *Profile) any { return p.CacheTTL }, time.Hour},
		{"redis fallback", "REDIS_URL", "redis://cache:6379/0", func(p *Profile) any { return p.RedisURL }, "redis://cache:6379/0"},
		{"batch", "PARKSENSE_BATCH_CONCURRENCY", "8", func(p *Profile) any { return p.BatchConcurrency }, 8},
		{"policy", "PARKSENSE_CONFIRM_POLICY", "rule.confidence < 0.9", func(p *Profile) any { return p.ConfirmPolicy }, "rule.confidence < 0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.envVar, tt.envValue)

			p := &Profile{}
			p.FromEnv()
			assert.Equal(t, tt.expected, tt.field(p))
		})
	}
}

func TestProfileFromEnv_ZeroLead(t *testing.T) {
	clearEnv(t)

	p := &Profile{ReminderLeadSet: true}
	p.FromEnv()
	assert.Zero(t, p.ReminderLead)

	t.Setenv("PARKSENSE_REMINDER_LEAD", "0s")
	p = &Profile{}
	p.FromEnv()
	assert.Zero(t, p.ReminderLead)
}

func TestProfileFromEnv_KeepsLoadedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PARKSENSE_CURRENCY", "EUR")
	t.Setenv("PARKSENSE_CACHE_CAPACITY", "10")

	p := &Profile{Currency: "GBP", CacheCapacity: 99}
	p.FromEnv()
	assert.Equal(t, "GBP", p.Currency)
	assert.Equal(t, 99, p.CacheCapacity)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	p := &Profile{Mode: "staging", Currency: " eur ", LogFormat: "JSON"}
	p.FromEnv()
	require.NoError(t, p.Validate())
	assert.Equal(t, "demo", p.Mode)
	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, "json", p.LogFormat)
	assert.Equal(t, time.UTC, p.Location())

	tests := []struct {
		name    string
		profile Profile
	}{
		{"timezone", Profile{Timezone: "Nowhere/Land", Currency: "USD"}},
		{"currency", Profile{Timezone: "UTC", Currency: "DOLLARS"}},
		{"lead", Profile{Timezone: "UTC", Currency: "USD", ReminderLead: -time.Minute}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.profile.Validate())
		})
	}
}
