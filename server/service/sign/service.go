// Package sign runs the parking pipeline for one sign: extraction (cached),
// evaluation at an instant, cost of an intended stay, a timer suggestion and
// the list of rules the user should confirm.
//
// The pure packages under plugin/parking never read a clock or fail; this
// layer owns the clock, the cache, the OCR engine and error codes.
package sign

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	parkerrors "github.com/hrygo/parksense/internal/errors"
	"github.com/hrygo/parksense/internal/observability"
	"github.com/hrygo/parksense/plugin/cache"
	"github.com/hrygo/parksense/plugin/ocr"
	"github.com/hrygo/parksense/plugin/parking"
	"github.com/hrygo/parksense/plugin/parking/evaluator"
	"github.com/hrygo/parksense/plugin/parking/extractor"
	"github.com/hrygo/parksense/plugin/parking/policy"
	"github.com/hrygo/parksense/plugin/parking/pricing"
	"github.com/hrygo/parksense/plugin/parking/timer"
)

// Config wires the service. Zero values fall back to defaults.
type Config struct {
	Currency string
	Location *time.Location
	// Lead is how early the timer warns; NoLead warns at expiry.
	Lead        time.Duration
	Concurrency int
	CacheTTL    time.Duration

	Policy  *policy.Policy
	Cache   cache.CacheService
	OCR     OCR
	Logger  *slog.Logger
	Metrics *observability.Metrics

	// Now reads the clock for requests without an instant.
	Now func() time.Time
}

type service struct {
	currency    string
	location    *time.Location
	concurrency int
	cacheTTL    time.Duration

	extractor *extractor.Extractor
	advisor   timer.Advisor
	policy    *policy.Policy
	cache     cache.CacheService
	ocr       OCR
	logger    *slog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// extraction is the cached product of reading one text.
type extraction struct {
	Rules []parking.Rule     `json:"rules"`
	Rates []parking.RateTier `json:"rates,omitempty"`
}

// NewService creates a sign service.
func NewService(cfg Config) Service {
	if cfg.Currency == "" {
		cfg.Currency = extractor.DefaultCurrency
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Lead == 0 {
		cfg.Lead = timer.DefaultLead
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Policy == nil {
		cfg.Policy = policy.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &service{
		currency:    cfg.Currency,
		location:    cfg.Location,
		concurrency: cfg.Concurrency,
		cacheTTL:    cfg.CacheTTL,
		extractor:   extractor.New(cfg.Currency),
		advisor:     timer.Advisor{Lead: cfg.Lead},
		policy:      cfg.Policy,
		cache:       cfg.Cache,
		ocr:         cfg.OCR,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
	}
}

func (s *service) Analyze(ctx context.Context, req *Request) (analysis *Analysis, err error) {
	reqCtx := observability.NewRequestContext(s.logger, OpAnalyze)
	defer func() { s.metrics.Record(OpAnalyze, reqCtx.Duration(), err) }()

	if perr := parkerrors.FromContext(ctx); perr != nil {
		return nil, perr
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	id := shortuuid.New()
	ctx = observability.WithRequestContext(ctx, reqCtx)

	ex, hit := s.extract(ctx, req.Text, req.Quality)
	rules := ex.Rules
	for _, i := range req.Confirmed {
		if i < 0 || i >= len(rules) {
			return nil, parkerrors.InvalidArgument("confirmed rule index out of range").
				WithContext("index", i).
				WithContext("rules", len(rules))
		}
		rules[i] = rules[i].Confirm()
	}

	at := req.At
	if at.IsZero() {
		at = s.now()
	}
	at = at.In(s.location)

	verdict := evaluator.Evaluate(rules, at)

	tiers := req.Tiers
	if len(tiers) == 0 {
		tiers = ex.Rates
	}
	var cost *parking.CostBreakdown
	if req.Duration > 0 {
		c := pricing.Calculate(tiers, at, req.Duration)
		cost = &c
	}

	pending, err := s.policy.Pending(rules)
	if err != nil {
		return nil, parkerrors.PolicyInvalid(err)
	}
	if pending == nil {
		pending = []int{}
	}

	analysis = &Analysis{
		ID:       id,
		At:       at,
		Rules:    rules,
		Rates:    ex.Rates,
		Verdict:  verdict,
		Cost:     cost,
		Timer:    s.advisor.Suggest(verdict, rules, at),
		Pending:  pending,
		CacheHit: hit,
	}

	reqCtx.Info(ctx, "sign analyzed",
		slog.String(observability.LogFieldSignID, id),
		slog.Int(observability.LogFieldRuleCount, len(rules)),
		slog.Bool(observability.LogFieldCacheHit, hit),
		slog.Bool("allowed", verdict.Allowed),
	)
	return analysis, nil
}

func validate(req *Request) error {
	if req == nil {
		return parkerrors.InvalidArgument("request is required")
	}
	if len(req.Text) > MaxTextLength {
		return parkerrors.InvalidArgument("text too long").WithContext("length", len(req.Text))
	}
	if req.Quality < 0 || req.Quality > 1 {
		return parkerrors.InvalidArgument("quality must be within [0, 1]").WithContext("quality", req.Quality)
	}
	if req.Duration < 0 {
		return parkerrors.InvalidArgument("duration must not be negative")
	}
	return nil
}

// extract returns the cached extraction for text, running the extractor on a
// miss. Cache failures only cost a re-extraction.
func (s *service) extract(ctx context.Context, text string, quality float64) (extraction, bool) {
	key := cache.RulesKey(text, quality, s.currency)

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, key); ok {
			var ex extraction
			if err := json.Unmarshal(data, &ex); err == nil && len(ex.Rules) > 0 {
				s.metrics.RecordCache(true)
				return ex, true
			}
			s.logger.WarnContext(ctx, "discarding unreadable cache entry", "key", key)
		}
		s.metrics.RecordCache(false)
	}

	start := time.Now()
	ex := extraction{
		Rules: s.extractor.ExtractWithQuality(text, quality),
		Rates: s.extractor.ExtractRates(text),
	}
	s.metrics.Record(OpExtract, time.Since(start), nil)

	if s.cache != nil {
		data, err := json.Marshal(ex)
		if err == nil {
			err = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "failed to cache extraction",
				"key", key,
				observability.LogFieldErrorCode, parkerrors.ErrCodeCacheUnavailable,
				"error", err,
			)
		}
	}
	return ex, false
}

func (s *service) AnalyzeBatch(ctx context.Context, reqs []*Request) (results []*Analysis, err error) {
	start := time.Now()
	defer func() { s.metrics.Record(OpBatch, time.Since(start), err) }()

	results = make([]*Analysis, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			analysis, err := s.Analyze(gctx, req)
			if err != nil {
				return errors.Wrapf(err, "sign %d", i)
			}
			results[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *service) ReadSign(ctx context.Context, image []byte, mimeType string) (reading *Reading, err error) {
	reqCtx := observability.NewRequestContext(s.logger, OpReadSign)
	defer func() { s.metrics.Record(OpReadSign, reqCtx.Duration(), err) }()

	if s.ocr == nil {
		return nil, parkerrors.OCRUnavailable("ocr engine not configured", nil)
	}
	if len(image) == 0 {
		return nil, parkerrors.InvalidArgument("image is empty")
	}

	result, err := s.ocr.Read(ctx, image, mimeType)
	if err != nil {
		perr := mapOCRError(ctx, err, mimeType)
		reqCtx.Error(ctx, "sign read failed", err,
			slog.String(observability.LogFieldErrorCode, string(perr.Code)))
		return nil, perr
	}

	reading = &Reading{
		ID:        shortuuid.New(),
		Text:      result.Text,
		Quality:   result.Quality(),
		WordCount: len(strings.Fields(result.Text)),
		MimeType:  mimeType,
	}
	reqCtx.Info(ctx, "sign read",
		slog.String(observability.LogFieldSignID, reading.ID),
		slog.Int(observability.LogFieldTextLen, len(reading.Text)),
		slog.Float64("quality", reading.Quality),
	)
	return reading, nil
}

func mapOCRError(ctx context.Context, err error, mimeType string) *parkerrors.ParkError {
	if perr := parkerrors.FromContext(ctx); perr != nil {
		return perr
	}
	switch {
	case errors.Is(err, ocr.ErrUnsupportedMedia):
		return parkerrors.UnsupportedMedia(mimeType)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return parkerrors.Wrap(err, parkerrors.ErrCodeContextCanceled, "ocr canceled")
	default:
		return parkerrors.OCRUnavailable("failed to read sign", err)
	}
}

func (s *service) AnalyzeImage(ctx context.Context, image []byte, mimeType string, req *Request) (*Analysis, error) {
	reading, err := s.ReadSign(ctx, image, mimeType)
	if err != nil {
		return nil, err
	}

	r := Request{}
	if req != nil {
		r = *req
	}
	r.Text = reading.Text
	r.Quality = reading.Quality
	return s.Analyze(ctx, &r)
}

func (s *service) Forget(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, cache.RulesKeyPrefix+"*"); err != nil {
		return parkerrors.Wrap(err, parkerrors.ErrCodeCacheUnavailable, "failed to clear extraction cache")
	}
	return nil
}
