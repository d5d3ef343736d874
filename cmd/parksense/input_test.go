package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	parkerrors "github.com/hrygo/parksense/internal/errors"
	"github.com/hrygo/parksense/plugin/parking"
)

func TestParseInstant(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	now := time.Date(2026, time.October, 14, 17, 0, 0, 0, time.UTC) // Wednesday 10:00 PDT

	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"empty", "", time.Time{}},
		{"now", "now", now.In(loc)},
		{"rfc3339", "2026-10-14T18:30:00Z", time.Date(2026, time.October, 14, 11, 30, 0, 0, loc)},
		{"local layout", "2026-10-16 08:15", time.Date(2026, time.October, 16, 8, 15, 0, 0, loc)},
		{"natural language", "tomorrow at 9am", time.Date(2026, time.October, 15, 9, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInstant(tt.in, now, loc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}

	_, err := parseInstant("when pigs fly", now, loc)
	require.Error(t, err)
	assert.True(t, parkerrors.IsCode(err, parkerrors.ErrCodeInvalidArgument))
}

func TestReadInput(t *testing.T) {
	dir := t.TempDir()
	textPath := filepath.Join(dir, "sign.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("NO PARKING"), 0o600))
	imagePath := filepath.Join(dir, "sign.png")
	require.NoError(t, os.WriteFile(imagePath, []byte{0x89, 'P', 'N', 'G'}, 0o600))

	in, err := readInput(strings.NewReader("2 HOUR PARKING"), "", false)
	require.NoError(t, err)
	assert.Equal(t, "stdin", in.name)
	assert.Equal(t, "2 HOUR PARKING", in.text)
	assert.False(t, in.isImage())

	in, err = readInput(nil, textPath, false)
	require.NoError(t, err)
	assert.Equal(t, "NO PARKING", in.text)

	_, err = readInput(nil, imagePath, false)
	assert.True(t, parkerrors.IsCode(err, parkerrors.ErrCodeInvalidArgument))

	in, err = readInput(nil, imagePath, true)
	require.NoError(t, err)
	assert.True(t, in.isImage())
	assert.Equal(t, "image/png", in.mimeType)

	_, err = readInput(nil, filepath.Join(dir, "missing.txt"), false)
	assert.True(t, parkerrors.IsCode(err, parkerrors.ErrCodeInvalidArgument))
}

func TestImageType(t *testing.T) {
	tests := []struct {
		path  string
		want  string
		image bool
	}{
		{"a.JPG", "image/jpeg", true},
		{"a.png", "image/png", true},
		{"a.txt", "text/plain", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := imageType(tt.path)
			assert.Equal(t, tt.image, ok)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestReadTiers(t *testing.T) {
	tiers, err := readTiers("")
	require.NoError(t, err)
	assert.Nil(t, tiers)

	path := filepath.Join(t.TempDir(), "tiers.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"description":"meter","price":{"amount":250,"currency":"USD"},"billing":"hourly"}]`), 0o600))
	tiers, err = readTiers(path)
	require.NoError(t, err)
	require.Len(t, tiers, 1)
	assert.Equal(t, parking.BillingHourly, tiers[0].Billing)
	assert.Equal(t, int64(250), tiers[0].Price.Amount)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o600))
	_, err = readTiers(path)
	assert.True(t, parkerrors.IsCode(err, parkerrors.ErrCodeInvalidArgument))
}

func TestEvaluateCommand(t *testing.T) {
	t.Setenv("PARKSENSE_TIMEZONE", "UTC")
	var out bytes.Buffer
	current.out = &out
	t.Cleanup(func() { current.out = os.Stdout })

	rootCmd.SetIn(strings.NewReader("NO PARKING\n7AM-9AM\n4PM-6PM\nMONDAY THRU FRIDAY"))
	rootCmd.SetArgs([]string{"evaluate", "--json", "--at", "2026-10-13 08:00"})
	require.NoError(t, rootCmd.Execute())

	var verdict parking.Verdict
	require.NoError(t, json.Unmarshal(out.Bytes(), &verdict))
	assert.False(t, verdict.Allowed)
	require.NotNil(t, verdict.NextChangeAt)
	assert.Equal(t, time.Date(2026, time.October, 13, 9, 0, 0, 0, time.UTC), verdict.NextChangeAt.UTC())
}

func TestRemindCommand_RefusesUnconfirmedTimer(t *testing.T) {
	t.Setenv("PARKSENSE_TIMEZONE", "UTC")
	var out bytes.Buffer
	current.out = &out
	t.Cleanup(func() { current.out = os.Stdout })

	rootCmd.SetIn(strings.NewReader("2 HOURS\n8AM-6PM"))
	rootCmd.SetArgs([]string{"remind", "--json", "--at", "2026-10-14 10:00", "--quality", "0.6"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.True(t, parkerrors.IsCode(err, parkerrors.ErrCodeInvalidArgument))
	assert.Empty(t, out.String())
}

func TestConfigFile(t *testing.T) {
	t.Setenv("PARKSENSE_TIMEZONE", "UTC")
	var out bytes.Buffer
	current.out = &out
	t.Cleanup(func() { current.out = os.Stdout })

	path := filepath.Join(t.TempDir(), "parksense.yaml")
	config := "cache-capacity: 64\nreminder-interval: 5s\nreminder-lead: 0s\nocr-rate-limit: 0.5\n"
	require.NoError(t, os.WriteFile(path, []byte(config), 0o600))

	rootCmd.SetIn(strings.NewReader("NO PARKING"))
	rootCmd.SetArgs([]string{"extract", "--json", "--config", path})
	require.NoError(t, rootCmd.Execute())

	p := current.profile
	assert.Equal(t, 64, p.CacheCapacity)
	assert.Equal(t, 5*time.Second, p.ReminderInterval)
	assert.Zero(t, p.ReminderLead)
	assert.Equal(t, 0.5, p.OCRRateLimit)
}
