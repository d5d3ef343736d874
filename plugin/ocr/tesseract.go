// Package ocr reads the text of photographed parking signs with Tesseract.
//
// Each read also reports a quality hint, the mean word confidence Tesseract
// assigned, which the extractor uses to scale rule confidence.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

var (
	// ErrUnsupportedMedia is returned for image types Tesseract cannot read.
	ErrUnsupportedMedia = errors.New("unsupported image type")
	// ErrUnavailable is returned when the tesseract binary fails or is missing.
	ErrUnavailable = errors.New("tesseract unavailable")
)

// Supported image MIME types for OCR
var SupportedMimeTypes = []string{
	"image/png",
	"image/jpeg",
	"image/jpg",
	"image/gif",
	"image/bmp",
	"image/tiff",
	"image/webp",
}

// Config holds the OCR configuration
type Config struct {
	// TesseractPath is the path to the tesseract executable
	TesseractPath string
	// DataPath is the path to the tessdata directory (optional)
	DataPath string
	// Languages are the languages to use for OCR (e.g., "eng+fra")
	Languages string
	// RateLimit caps tesseract runs per second; zero or less disables the limit
	RateLimit float64
	// Preprocess cleans up photos before recognition
	Preprocess bool
}

// DefaultConfig returns the default OCR configuration
func DefaultConfig() *Config {
	return &Config{
		TesseractPath: "tesseract",
		Languages:     "eng",
		RateLimit:     2,
		Preprocess:    true,
	}
}

// ConfigFromEnv creates OCR config from PARKSENSE_OCR_* environment variables.
func ConfigFromEnv() *Config {
	config := DefaultConfig()

	if path := os.Getenv("PARKSENSE_OCR_TESSERACT_PATH"); path != "" {
		config.TesseractPath = path
	}
	if path := os.Getenv("PARKSENSE_OCR_TESSDATA_PATH"); path != "" {
		config.DataPath = path
	}
	if langs := os.Getenv("PARKSENSE_OCR_LANGUAGES"); langs != "" {
		config.Languages = langs
	}
	if limit := os.Getenv("PARKSENSE_OCR_RATE_LIMIT"); limit != "" {
		if f, err := strconv.ParseFloat(limit, 64); err == nil {
			config.RateLimit = f
		}
	}
	if raw, err := strconv.ParseBool(os.Getenv("PARKSENSE_OCR_RAW_IMAGE")); err == nil && raw {
		config.Preprocess = false
	}
	return config
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		slog.WarnContext(ctx, "tesseract command failed", "error", err, "stderr", stderr.String())
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Client runs Tesseract. It is safe for concurrent use.
type Client struct {
	config  *Config
	limiter *rate.Limiter
	run     Runner
}

// NewClient creates a new OCR client
func NewClient(config *Config) *Client {
	return NewClientWithRunner(config, execRunner)
}

// NewClientWithRunner creates a client that runs commands through run.
func NewClientWithRunner(config *Config, run Runner) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	return &Client{
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		run:     run,
	}
}

// Read recognizes the text of a sign photo.
func (c *Client) Read(ctx context.Context, image []byte, mimeType string) (*Result, error) {
	if !c.IsSupported(mimeType) {
		return nil, errors.Wrapf(ErrUnsupportedMedia, "MIME type %q", mimeType)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for OCR rate limit")
	}

	if c.config.Preprocess {
		cleaned, err := Preprocess(image)
		if err != nil {
			slog.WarnContext(ctx, "image preprocessing skipped", "mime_type", mimeType, "error", err)
		} else {
			image = cleaned
		}
	}

	// Tesseract reads from a file; the format is sniffed from content.
	tmpFile, err := os.CreateTemp("", "parksense_ocr_*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(image); err != nil {
		tmpFile.Close()
		return nil, errors.Wrap(err, "failed to write temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to write temp file")
	}

	args := []string{tmpPath, "stdout"}
	args = append(args, c.commonArgs()...)
	args = append(args, "tsv")

	out, err := c.run(ctx, c.config.TesseractPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "tesseract interrupted")
		}
		return nil, errors.Wrapf(ErrUnavailable, "tesseract failed: %v", err)
	}

	result, err := ParseTSV(out)
	if err != nil {
		return nil, err
	}
	result.Languages = c.config.Languages
	return result, nil
}

// ReadText is Read returning only the text and its quality hint.
func (c *Client) ReadText(ctx context.Context, image []byte, mimeType string) (string, float64, error) {
	result, err := c.Read(ctx, image, mimeType)
	if err != nil {
		return "", 0, err
	}
	return result.Text, result.Quality(), nil
}

func (c *Client) commonArgs() []string {
	var args []string
	if c.config.Languages != "" {
		args = append(args, "-l", c.config.Languages)
	}
	if c.config.DataPath != "" {
		args = append(args, "--tessdata-dir", c.config.DataPath)
	}
	return args
}

// IsAvailable checks if Tesseract is available
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.run(ctx, c.config.TesseractPath, "--version")
	return err == nil
}

// GetVersion returns the first line of the Tesseract version banner.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	out, err := c.run(ctx, c.config.TesseractPath, "--version")
	if err != nil {
		return "", errors.Wrap(ErrUnavailable, err.Error())
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return version, nil
}

// GetAvailableLanguages returns the list of installed language packs.
func (c *Client) GetAvailableLanguages(ctx context.Context) ([]string, error) {
	args := []string{"--list-langs"}
	if c.config.DataPath != "" {
		args = append(args, "--tessdata-dir", c.config.DataPath)
	}

	out, err := c.run(ctx, c.config.TesseractPath, args...)
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}

	var langs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		// The first line is a banner such as: List of available languages in "/usr/share/tessdata/" (3):
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "Error:") {
			continue
		}
		langs = append(langs, line)
	}
	return langs, nil
}

// IsSupported checks if a MIME type is supported for OCR
func (c *Client) IsSupported(mimeType string) bool {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	mimeType = strings.TrimSpace(mimeType)
	for _, supported := range SupportedMimeTypes {
		if strings.EqualFold(mimeType, supported) {
			return true
		}
	}
	return false
}

// GetLanguageName returns the full name of a language code
func GetLanguageName(code string) string {
	names := map[string]string{
		"eng": "English",
		"fra": "French",
		"deu": "German",
		"spa": "Spanish",
		"ita": "Italian",
		"nld": "Dutch",
		"por": "Portuguese",
		"osd": "Orientation and script detection",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return code
}

// FormatOutput formats the OCR output
func FormatOutput(result *Result, format string) (string, error) {
	switch format {
	case "text", "":
		return result.Text, nil
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", format)
	}
}
