package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	parkerrors "github.com/hrygo/parksense/internal/errors"
	"github.com/hrygo/parksense/internal/observability"
	"github.com/hrygo/parksense/internal/profile"
)

var version = "0.1.0"

// app holds what every command needs once flags and env are loaded.
type app struct {
	profile *profile.Profile
	logger  *slog.Logger
	out     io.Writer
	json    bool
}

var (
	current = &app{out: os.Stdout}

	rootCmd = &cobra.Command{
		Use:           "parksense",
		Short:         "Read parking signs and tell whether, how long and for how much you can park",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return current.setup(cmd)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("mode", "", `mode of the process: "prod", "dev" or "demo"`)
	flags.String("timezone", "", "IANA timezone signs are read in")
	flags.String("currency", "", "ISO 4217 currency for fines and rates")
	flags.String("log-format", "", `log format: "text" or "json"`)
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Bool("json", false, "print JSON instead of a summary")
	flags.Bool("no-color", false, "disable colored output")
	flags.Bool("ocr", false, "read image inputs through tesseract")
	flags.String("tesseract", "", "path to the tesseract executable")
	flags.String("tessdata", "", "path to the tessdata directory")
	flags.String("ocr-languages", "", `tesseract languages, e.g. "eng+spa"`)
	flags.Bool("raw-image", false, "skip image preprocessing before OCR")
	flags.String("redis-url", "", "redis URL for the shared extraction cache")
	flags.Float64("ocr-rate-limit", 0, "tesseract calls per second")
	flags.Duration("cache-ttl", 0, "how long extractions stay cached")
	flags.Int("cache-capacity", 0, "extractions kept in memory")
	flags.Duration("lead", 0, "how long before expiry the warning fires, 0s to warn at expiry (default 10m)")
	flags.Duration("reminder-interval", 0, "how often --watch checks for due reminders")
	flags.String("confirm-policy", "", "CEL expression selecting rules that need confirmation")
	flags.Int("concurrency", 0, "signs analyzed in parallel by batch")

	bindings := map[string]string{
		"mode":              "mode",
		"timezone":          "timezone",
		"currency":          "currency",
		"log-format":        "log-format",
		"log-level":         "log-level",
		"ocr-enabled":       "ocr",
		"ocr-tesseract":     "tesseract",
		"ocr-tessdata":      "tessdata",
		"ocr-languages":     "ocr-languages",
		"ocr-raw-image":     "raw-image",
		"ocr-rate-limit":    "ocr-rate-limit",
		"redis-url":         "redis-url",
		"cache-ttl":         "cache-ttl",
		"cache-capacity":    "cache-capacity",
		"reminder-lead":     "lead",
		"reminder-interval": "reminder-interval",
		"confirm-policy":    "confirm-policy",
		"batch-concurrency": "concurrency",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("parksense")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newExtractCmd(),
		newEvaluateCmd(),
		newCostCmd(),
		newSuggestCmd(),
		newAnalyzeCmd(),
		newBatchCmd(),
		newOCRCmd(),
		newRemindCmd(),
	)
}

// setup loads .env, the optional config file, then flags and PARKSENSE_*
// variables into the profile.
func (a *app) setup(cmd *cobra.Command) error {
	_ = godotenv.Load(".env")

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "failed to read config file")
		}
	}

	a.profile = &profile.Profile{
		Mode:             viper.GetString("mode"),
		Version:          version,
		Timezone:         viper.GetString("timezone"),
		Currency:         viper.GetString("currency"),
		LogFormat:        viper.GetString("log-format"),
		LogLevel:         viper.GetString("log-level"),
		OCREnabled:       viper.GetBool("ocr-enabled"),
		TesseractPath:    viper.GetString("ocr-tesseract"),
		TessdataPath:     viper.GetString("ocr-tessdata"),
		OCRLanguages:     viper.GetString("ocr-languages"),
		OCRRateLimit:     viper.GetFloat64("ocr-rate-limit"),
		OCRRawImage:      viper.GetBool("ocr-raw-image"),
		RedisURL:         viper.GetString("redis-url"),
		CacheCapacity:    viper.GetInt("cache-capacity"),
		CacheTTL:         viper.GetDuration("cache-ttl"),
		ReminderLead:     viper.GetDuration("reminder-lead"),
		ReminderLeadSet:  viper.IsSet("reminder-lead"),
		ReminderInterval: viper.GetDuration("reminder-interval"),
		ConfirmPolicy:    viper.GetString("confirm-policy"),
		BatchConcurrency: viper.GetInt("batch-concurrency"),
	}
	a.profile.FromEnv()
	if err := a.profile.Validate(); err != nil {
		return parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "invalid configuration")
	}

	a.logger = observability.NewLogger(os.Stderr, a.profile.LogFormat, a.profile.LogLevel)
	slog.SetDefault(a.logger)

	a.json, _ = cmd.Flags().GetBool("json")
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		color.NoColor = true
	}

	a.logger.Debug("profile loaded",
		slog.String("mode", a.profile.Mode),
		slog.String("timezone", a.profile.Timezone),
		slog.String("currency", a.profile.Currency),
		slog.Bool("redis", a.profile.IsRedisEnabled()),
	)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(parkerrors.ExitCode(err))
	}
}
