package profile

import (
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/parksense/server/timezone"
)

// Profile is the configuration of a parksense process.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Version is the current version of parksense
	Version string
	// Timezone is the IANA location signs are read in
	Timezone string
	// Currency prices fines and rates read off signs
	Currency string

	LogFormat string // PARKSENSE_LOG_FORMAT (default: text)
	LogLevel  string // PARKSENSE_LOG_LEVEL (default: info)

	// OCR configuration
	OCREnabled    bool    // PARKSENSE_OCR_ENABLED (default: false)
	TesseractPath string  // PARKSENSE_OCR_TESSERACT_PATH (default: tesseract)
	TessdataPath  string  // PARKSENSE_OCR_TESSDATA_PATH (fallback: TESSDATA_PREFIX)
	OCRLanguages  string  // PARKSENSE_OCR_LANGUAGES (default: eng)
	OCRRateLimit  float64 // PARKSENSE_OCR_RATE_LIMIT, calls per second (default: 2)
	OCRRawImage   bool    // PARKSENSE_OCR_RAW_IMAGE, skip preprocessing (default: false)

	// Extraction cache configuration
	CacheCapacity int           // PARKSENSE_CACHE_CAPACITY (default: 256)
	CacheTTL      time.Duration // PARKSENSE_CACHE_TTL (default: 1h)
	RedisURL      string        // PARKSENSE_REDIS_URL (fallback: REDIS_URL)

	// Reminder configuration
	ReminderLead     time.Duration // PARKSENSE_REMINDER_LEAD (default: 10m)
	ReminderInterval time.Duration // PARKSENSE_REMINDER_INTERVAL (default: 30s)
	// ReminderLeadSet marks ReminderLead as given, so a zero lead turns the warning off
	ReminderLeadSet bool

	// ConfirmPolicy is the CEL expression selecting rules that need confirmation
	ConfirmPolicy string // PARKSENSE_CONFIRM_POLICY
	// BatchConcurrency bounds parallel sign analysis
	BatchConcurrency int // PARKSENSE_BATCH_CONCURRENCY (default: 4)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsRedisEnabled returns true if a Redis URL is configured for the L2 cache.
func (p *Profile) IsRedisEnabled() bool {
	return p.RedisURL != ""
}

// Location returns the configured timezone, or UTC if it does not parse.
func (p *Profile) Location() *time.Location {
	loc, _ := timezone.ParseTimezone(p.Timezone)
	return loc
}

// FromEnv fills fields that are still unset from PARKSENSE_* environment
// variables, then from defaults. Values already loaded from flags or a config
// file win.
func (p *Profile) FromEnv() {
	// Helper to get env value with a generic fallback
	getEnvWithFallback := func(key, fallbackKey string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		if fallbackKey == "" {
			return ""
		}
		return os.Getenv(fallbackKey)
	}

	setString := func(field *string, key, fallbackKey, defaultValue string) {
		if *field != "" {
			return
		}
		if val := getEnvWithFallback(key, fallbackKey); val != "" {
			*field = val
			return
		}
		*field = defaultValue
	}

	setDuration := func(field *time.Duration, key string, defaultValue time.Duration) {
		if *field != 0 {
			return
		}
		*field = defaultValue
		if val := os.Getenv(key); val != "" {
			d, err := time.ParseDuration(val)
			if err != nil {
				slog.Warn("ignoring invalid duration", slog.String("key", key), slog.String("value", val))
				return
			}
			*field = d
		}
	}

	setInt := func(field *int, key string, defaultValue int) {
		if *field != 0 {
			return
		}
		*field = defaultValue
		if val := os.Getenv(key); val != "" {
			n, err := strconv.Atoi(val)
			if err != nil {
				slog.Warn("ignoring invalid integer", slog.String("key", key), slog.String("value", val))
				return
			}
			*field = n
		}
	}

	getBoolEnv := func(key string, defaultValue bool) bool {
		val := os.Getenv(key)
		if val == "" {
			return defaultValue
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return defaultValue
		}
		return b
	}

	setString(&p.Mode, "PARKSENSE_MODE", "", "dev")
	setString(&p.Timezone, "PARKSENSE_TIMEZONE", "TZ", "UTC")
	setString(&p.Currency, "PARKSENSE_CURRENCY", "", "USD")
	setString(&p.LogFormat, "PARKSENSE_LOG_FORMAT", "", "text")
	setString(&p.LogLevel, "PARKSENSE_LOG_LEVEL", "", "info")

	p.OCREnabled = p.OCREnabled || getBoolEnv("PARKSENSE_OCR_ENABLED", false)
	setString(&p.TesseractPath, "PARKSENSE_OCR_TESSERACT_PATH", "", "tesseract")
	setString(&p.TessdataPath, "PARKSENSE_OCR_TESSDATA_PATH", "TESSDATA_PREFIX", "")
	setString(&p.OCRLanguages, "PARKSENSE_OCR_LANGUAGES", "", "eng")
	if p.OCRRateLimit == 0 {
		p.OCRRateLimit = 2
		if val := os.Getenv("PARKSENSE_OCR_RATE_LIMIT"); val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				p.OCRRateLimit = f
			}
		}
	}
	p.OCRRawImage = p.OCRRawImage || getBoolEnv("PARKSENSE_OCR_RAW_IMAGE", false)

	setInt(&p.CacheCapacity, "PARKSENSE_CACHE_CAPACITY", 256)
	setDuration(&p.CacheTTL, "PARKSENSE_CACHE_TTL", time.Hour)
	setString(&p.RedisURL, "PARKSENSE_REDIS_URL", "REDIS_URL", "")

	if !p.ReminderLeadSet {
		setDuration(&p.ReminderLead, "PARKSENSE_REMINDER_LEAD", 10*time.Minute)
	}
	setDuration(&p.ReminderInterval, "PARKSENSE_REMINDER_INTERVAL", 30*time.Second)

	setString(&p.ConfirmPolicy, "PARKSENSE_CONFIRM_POLICY", "", "")
	setInt(&p.BatchConcurrency, "PARKSENSE_BATCH_CONCURRENCY", 4)
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if !timezone.IsValidTimezone(p.Timezone) {
		return errors.Errorf("invalid timezone %q", p.Timezone)
	}

	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if !currencyPattern.MatchString(p.Currency) {
		return errors.Errorf("invalid currency %q, want an ISO 4217 code", p.Currency)
	}

	p.LogFormat = strings.ToLower(p.LogFormat)
	if p.LogFormat != "json" {
		p.LogFormat = "text"
	}

	if p.ReminderLead < 0 {
		return errors.Errorf("reminder lead must not be negative, got %s", p.ReminderLead)
	}
	if p.ReminderInterval <= 0 {
		p.ReminderInterval = 30 * time.Second
	}
	if p.CacheCapacity <= 0 {
		p.CacheCapacity = 256
	}
	if p.BatchConcurrency <= 0 {
		p.BatchConcurrency = 4
	}
	if p.OCRRateLimit <= 0 {
		slog.Warn("OCR rate limit disabled", slog.Float64("rate", p.OCRRateLimit))
	}
	return nil
}
