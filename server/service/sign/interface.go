package sign

import (
	"context"
	"time"

	"github.com/hrygo/parksense/plugin/ocr"
	"github.com/hrygo/parksense/plugin/parking"
)

// Service analyzes parking sign text and images.
type Service interface {
	// Analyze extracts rules from the request text and evaluates them at the
	// request instant.
	Analyze(ctx context.Context, req *Request) (*Analysis, error)

	// AnalyzeBatch analyzes requests concurrently. Results keep request order;
	// the first failure cancels the remaining work.
	AnalyzeBatch(ctx context.Context, reqs []*Request) ([]*Analysis, error)

	// ReadSign transcribes a sign image through the OCR engine.
	ReadSign(ctx context.Context, image []byte, mimeType string) (*Reading, error)

	// AnalyzeImage reads a sign image and analyzes its text.
	AnalyzeImage(ctx context.Context, image []byte, mimeType string, req *Request) (*Analysis, error)

	// Forget drops cached extractions.
	Forget(ctx context.Context) error
}

// OCR transcribes images. *ocr.Client satisfies it.
type OCR interface {
	Read(ctx context.Context, image []byte, mimeType string) (*ocr.Result, error)
}

// Request is one sign to analyze.
type Request struct {
	// Text is the transcribed sign or meter display.
	Text string `json:"text"`
	// Quality is the OCR quality hint in (0, 1]; zero means typed text.
	Quality float64 `json:"quality,omitempty"`
	// At is the evaluation instant; zero means now.
	At time.Time `json:"at,omitempty"`
	// Duration of the intended stay. Cost is only computed when positive.
	Duration time.Duration `json:"duration,omitempty"`
	// Tiers overrides the rates read from the text.
	Tiers []parking.RateTier `json:"tiers,omitempty"`
	// Confirmed lists indexes of extracted rules the user confirmed.
	Confirmed []int `json:"confirmed,omitempty"`
}

// Analysis is the outcome of analyzing one sign.
type Analysis struct {
	ID       string                   `json:"id"`
	At       time.Time                `json:"at"`
	Rules    []parking.Rule           `json:"rules"`
	Rates    []parking.RateTier       `json:"rates,omitempty"`
	Verdict  parking.Verdict          `json:"verdict"`
	Cost     *parking.CostBreakdown   `json:"cost,omitempty"`
	Timer    *parking.TimerSuggestion `json:"timer,omitempty"`
	Pending  []int                    `json:"pending_confirmation"`
	CacheHit bool                     `json:"cache_hit"`
}

// TimerNeedsConfirmation reports whether the timer was derived from a rule
// that still awaits confirmation. Reminders must not be armed on it.
func (a *Analysis) TimerNeedsConfirmation() bool {
	if a == nil || a.Timer == nil {
		return false
	}
	for _, i := range a.Pending {
		if i >= 0 && i < len(a.Rules) && a.Rules[i] == a.Timer.Rule {
			return true
		}
	}
	return false
}

// Reading is a transcribed sign image.
type Reading struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Quality   float64 `json:"quality"`
	WordCount int     `json:"word_count"`
	MimeType  string  `json:"mime_type"`
}
