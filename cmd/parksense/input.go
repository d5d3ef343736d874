package main

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/pkg/errors"

	parkerrors "github.com/hrygo/parksense/internal/errors"
	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/server/timezone"
)

// input is one sign given on the command line: typed text, or an image
// when OCR is on.
type input struct {
	name     string
	text     string
	image    []byte
	mimeType string
}

func (in input) isImage() bool {
	return in.image != nil
}

// readInput reads the sign from path, or from stdin when path is "" or "-".
func readInput(stdin io.Reader, path string, ocrEnabled bool) (input, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return input{}, errors.Wrap(err, "failed to read stdin")
		}
		return input{name: "stdin", text: string(data)}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return input{}, parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "failed to read input")
	}

	if mimeType, ok := imageType(path); ok {
		if !ocrEnabled {
			return input{}, parkerrors.InvalidArgument("image input needs OCR, pass --ocr").WithContext("path", path)
		}
		return input{name: path, image: data, mimeType: mimeType}, nil
	}
	return input{name: path, text: string(data)}, nil
}

// imageType reports the image MIME type of path by its extension.
func imageType(path string) (string, bool) {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType, strings.HasPrefix(mimeType, "image/")
}

var nlp = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// parseInstant reads --at. It accepts RFC 3339, timezone.LocalLayout, or
// natural language relative to now ("tomorrow at 9am"). An empty value
// yields the zero time so the service reads its own clock.
func parseInstant(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if strings.EqualFold(s, "now") {
		return now.In(loc), nil
	}
	if t, err := timezone.ParseInstant(s, loc); err == nil {
		return t, nil
	}

	result, err := nlp.Parse(s, now.In(loc))
	if err != nil {
		return time.Time{}, parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "failed to parse --at")
	}
	if result == nil {
		return time.Time{}, parkerrors.InvalidArgument("unrecognized instant").WithContext("at", s)
	}
	return result.Time.In(loc), nil
}

// readTiers loads a JSON array of rate tiers.
func readTiers(path string) ([]parking.RateTier, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "failed to read tiers")
	}
	var tiers []parking.RateTier
	if err := json.Unmarshal(data, &tiers); err != nil {
		return nil, parkerrors.Wrap(err, parkerrors.ErrCodeInvalidArgument, "invalid tiers file")
	}
	return tiers, nil
}

// stdinOrArg returns the single optional path argument.
func stdinOrArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// withTimeout bounds a command when d is positive.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
