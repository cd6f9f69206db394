// Package support turns a user's question and optional screenshot into a
// single model dispatch and returns the answer.
package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Protocol-Lattice/go-support-desk/src/concurrent"
	"github.com/Protocol-Lattice/go-support-desk/src/metrics"
	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/prompt"
	"github.com/Protocol-Lattice/go-support-desk/src/transcript"
)

// EmptyQuestionWarning is shown instead of an answer when the question is blank.
const EmptyQuestionWarning = "Please enter your question!"

var (
	// ErrEmptyQuestion is returned before any dispatch when the question is blank.
	ErrEmptyQuestion = errors.New("empty question")
	// ErrTimeout wraps dispatch failures caused by the configured timeout.
	ErrTimeout = errors.New("model dispatch timed out")
)

// Submission is what the user handed in.
type Submission struct {
	Question   string
	Attachment *ocr.Image
}

// Query is the validated input that fills the template.
type Query struct {
	Question       string `json:"question"`
	AttachmentText string `json:"attachment_text,omitempty"`
}

// Answer is a successful dispatch.
type Answer struct {
	ID       string        `json:"id"`
	Query    Query         `json:"query"`
	Prompt   string        `json:"-"`
	Text     string        `json:"answer"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Cached   bool          `json:"cached"`
	Elapsed  time.Duration `json:"elapsed"`
}

type Service struct {
	llm       models.LLM
	template  *prompt.Template
	extractor ocr.Extractor
	pool      *concurrent.WorkerPool
	timeout   time.Duration
	provider  string
	model     string
	logger    *zap.Logger
	metrics   *metrics.Metrics
	store     transcript.Store
	now       func() time.Time
}

type Option func(*Service)

func WithTemplate(t *prompt.Template) Option { return func(s *Service) { s.template = t } }

func WithExtractor(e ocr.Extractor) Option { return func(s *Service) { s.extractor = e } }

// WithMaxInFlight bounds concurrent dispatches across all callers.
func WithMaxInFlight(n int) Option {
	return func(s *Service) { s.pool = concurrent.NewWorkerPool(n) }
}

// WithTimeout bounds each dispatch; zero disables the bound.
func WithTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

// WithProvider labels metrics, logs and transcripts when the adapter fails
// before reporting its own provider and model.
func WithProvider(provider, model string) Option {
	return func(s *Service) { s.provider, s.model = provider, model }
}

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithTranscript(st transcript.Store) Option { return func(s *Service) { s.store = st } }

func New(llm models.LLM, opts ...Option) (*Service, error) {
	if llm == nil {
		return nil, errors.New("support: nil LLM")
	}
	s := &Service{
		llm:       llm,
		template:  prompt.Default(),
		extractor: ocr.StubExtractor{},
		pool:      concurrent.NewWorkerPool(0),
		logger:    zap.NewNop(),
		store:     transcript.NopStore{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.template == nil {
		return nil, errors.New("support: nil template")
	}
	return s, nil
}

// Prepare validates a submission and fills the template without dispatching.
func (s *Service) Prepare(ctx context.Context, sub Submission) (Query, string, error) {
	if strings.TrimSpace(sub.Question) == "" {
		return Query{}, "", ErrEmptyQuestion
	}
	q := Query{Question: sub.Question}
	if sub.Attachment != nil {
		text, err := s.extractor.Extract(ctx, sub.Attachment)
		if err != nil {
			return Query{}, "", fmt.Errorf("extract attachment text: %w", err)
		}
		q.AttachmentText = text
	}
	return q, s.template.Fill(q.Question, q.AttachmentText), nil
}

// Submit validates sub, dispatches the filled prompt exactly once and returns
// the model's answer. A blank question returns ErrEmptyQuestion without
// dispatching. Provider HTTP failures come back as *models.StatusError.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Answer, error) {
	q, filled, err := s.Prepare(ctx, sub)
	if err != nil {
		if errors.Is(err, ErrEmptyQuestion) {
			s.metrics.Rejected.Inc()
			s.logger.Debug("rejected empty question")
		}
		return nil, err
	}

	id := uuid.NewString()
	dctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := s.now()
	var resp models.Response
	err = s.pool.Do(dctx, func() error {
		s.metrics.InFlight.Inc()
		defer s.metrics.InFlight.Dec()
		var genErr error
		resp, genErr = s.llm.Generate(dctx, filled)
		return genErr
	})
	elapsed := s.now().Sub(started)

	provider, model := s.provider, s.model
	if resp.Provider != "" {
		provider = resp.Provider
	}
	if resp.Model != "" {
		model = resp.Model
	}
	outcome := classify(err)
	if err != nil && errors.Is(dctx.Err(), context.DeadlineExceeded) {
		outcome = metrics.OutcomeTimeout
	}

	s.metrics.Dispatches.WithLabelValues(provider, outcome).Inc()
	s.metrics.Latency.WithLabelValues(provider).Observe(elapsed.Seconds())
	if resp.Cached {
		s.metrics.CacheHits.Inc()
	}

	fields := []zap.Field{
		zap.String("request_id", id),
		zap.String("provider", provider),
		zap.String("model", model),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", elapsed),
		zap.Bool("cached", resp.Cached),
	}
	rec := transcript.Record{
		ID:             id,
		CreatedAt:      started.UTC(),
		Question:       q.Question,
		AttachmentText: q.AttachmentText,
		Provider:       provider,
		Model:          model,
		Outcome:        outcome,
		LatencyMS:      elapsed.Milliseconds(),
	}

	if err != nil {
		if se, ok := models.AsStatusError(err); ok {
			rec.StatusCode = se.StatusCode
			fields = append(fields, zap.Int("status", se.StatusCode))
		}
		rec.Error = err.Error()
		s.logger.Error("model dispatch failed", append(fields, zap.Error(err))...)
		s.record(ctx, rec)
		if outcome == metrics.OutcomeTimeout {
			return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, elapsed.Round(time.Millisecond), err)
		}
		return nil, err
	}

	rec.Answer = resp.Text
	s.logger.Info("model dispatch succeeded", fields...)
	s.record(ctx, rec)

	return &Answer{
		ID:       id,
		Query:    q,
		Prompt:   filled,
		Text:     resp.Text,
		Provider: provider,
		Model:    model,
		Cached:   resp.Cached,
		Elapsed:  elapsed,
	}, nil
}

// Recent lists the latest transcript records, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]transcript.Record, error) {
	return s.store.Recent(ctx, limit)
}

// record writes rec on a context detached from the caller's cancellation;
// failures are logged and dropped.
func (s *Service) record(ctx context.Context, rec transcript.Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Warn("transcript write failed", zap.String("request_id", rec.ID), zap.Error(err))
	}
}

func classify(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeTimeout
	case errors.Is(err, models.ErrEmptyResponse):
		return metrics.OutcomeEmptyResponse
	}
	if _, ok := models.AsStatusError(err); ok {
		return metrics.OutcomeHTTPError
	}
	return metrics.OutcomeTransportError
}
