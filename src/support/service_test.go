package support

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Protocol-Lattice/go-support-desk/src/metrics"
	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/prompt"
	"github.com/Protocol-Lattice/go-support-desk/src/transcript"
)

type recordingLLM struct {
	mu      sync.Mutex
	prompts []string
	text    string
	err     error
	block   bool
}

func (r *recordingLLM) Generate(ctx context.Context, p string) (models.Response, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, p)
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return models.Response{}, ctx.Err()
	}
	if r.err != nil {
		return models.Response{}, r.err
	}
	return models.Response{Text: r.text, Provider: "fake", Model: "fake-1"}, nil
}

func (r *recordingLLM) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prompts)
}

type failingStore struct{ transcript.NopStore }

func (failingStore) Save(context.Context, transcript.Record) error {
	return errors.New("disk full")
}

func TestSubmitDispatchesExactlyOnce(t *testing.T) {
	llm := &recordingLLM{text: "Check the power cable."}
	svc, err := New(llm)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ans, err := svc.Submit(context.Background(), Submission{Question: "printer won't turn on"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if llm.calls() != 1 {
		t.Fatalf("expected one dispatch, got %d", llm.calls())
	}
	want := prompt.Default().Fill("printer won't turn on", "")
	if llm.prompts[0] != want || ans.Prompt != want {
		t.Fatalf("adapter did not receive the filled template unmodified:\n%q", llm.prompts[0])
	}
	if !strings.Contains(llm.prompts[0], "You are a friendly IT support assistant.") ||
		!strings.Contains(llm.prompts[0], "User's question: printer won't turn on") {
		t.Fatalf("prompt missing preamble or question: %q", llm.prompts[0])
	}
	if ans.Text != "Check the power cable." || ans.Provider != "fake" || ans.ID == "" {
		t.Fatalf("unexpected answer %+v", ans)
	}
}

func TestSubmitRejectsBlankQuestions(t *testing.T) {
	llm := &recordingLLM{text: "unused"}
	m := metrics.New(nil)
	svc, _ := New(llm, WithMetrics(m))

	for _, q := range []string{"", "   ", "\n\t "} {
		ans, err := svc.Submit(context.Background(), Submission{Question: q})
		if !errors.Is(err, ErrEmptyQuestion) || ans != nil {
			t.Fatalf("Submit(%q) = (%v, %v), want ErrEmptyQuestion", q, ans, err)
		}
	}
	if llm.calls() != 0 {
		t.Fatalf("blank questions must never be dispatched, got %d calls", llm.calls())
	}
	if got := testutil.ToFloat64(m.Rejected); got != 3 {
		t.Fatalf("rejected counter = %v", got)
	}
}

func TestSubmitUsesStubTextForAnyAttachment(t *testing.T) {
	llm := &recordingLLM{text: "ok"}
	svc, _ := New(llm)

	for _, img := range []*ocr.Image{
		{Name: "a.png", MIME: "image/png", Data: []byte{1, 2, 3}},
		{Name: "b.jpg", MIME: "image/jpeg", Data: []byte("totally different")},
	} {
		ans, err := svc.Submit(context.Background(), Submission{Question: "what is this error?", Attachment: img})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if ans.Query.AttachmentText != ocr.StubText {
			t.Fatalf("attachment text = %q", ans.Query.AttachmentText)
		}
		if !strings.HasSuffix(ans.Prompt, "User's question: what is this error?\n"+ocr.StubText+"\n") {
			t.Fatalf("unexpected prompt tail: %q", ans.Prompt)
		}
	}
}

func TestSubmitSurfacesStatusError(t *testing.T) {
	llm := &recordingLLM{err: &models.StatusError{Provider: "gemini-rest", StatusCode: 500, Body: "server error"}}
	store := transcript.NewMemoryStore(10)
	m := metrics.New(nil)
	svc, _ := New(llm, WithTranscript(store), WithMetrics(m), WithProvider("gemini-rest", "gemini-2.5-pro"))

	_, err := svc.Submit(context.Background(), Submission{Question: "vpn drops"})
	se, ok := models.AsStatusError(err)
	if !ok || err.Error() != "Error 500: server error" {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != 500 {
		t.Fatalf("status = %d", se.StatusCode)
	}
	if llm.calls() != 1 {
		t.Fatalf("failures must not be retried, got %d calls", llm.calls())
	}

	recs, _ := store.Recent(context.Background(), 1)
	if len(recs) != 1 || recs[0].Outcome != metrics.OutcomeHTTPError || recs[0].StatusCode != 500 || recs[0].Provider != "gemini-rest" {
		t.Fatalf("unexpected transcript %+v", recs)
	}
	if got := testutil.ToFloat64(m.Dispatches.WithLabelValues("gemini-rest", metrics.OutcomeHTTPError)); got != 1 {
		t.Fatalf("dispatch counter = %v", got)
	}
}

func TestSubmitTimeout(t *testing.T) {
	llm := &recordingLLM{block: true}
	svc, _ := New(llm, WithTimeout(20*time.Millisecond))

	_, err := svc.Submit(context.Background(), Submission{Question: "slow"})
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestSubmitIgnoresTranscriptFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	llm := &recordingLLM{text: "fine"}
	svc, _ := New(llm, WithTranscript(failingStore{}), WithLogger(zap.New(core)))

	if _, err := svc.Submit(context.Background(), Submission{Question: "hello"}); err != nil {
		t.Fatalf("transcript failure leaked to caller: %v", err)
	}
	if logs.FilterMessage("transcript write failed").Len() != 1 {
		t.Fatalf("expected a warning about the transcript write, got %v", logs.All())
	}
}

func TestSubmitRespectsCustomTemplate(t *testing.T) {
	llm := &recordingLLM{text: "ok"}
	tmpl := prompt.MustNew("Q={question}|A={attachment_text}")
	svc, _ := New(llm, WithTemplate(tmpl))

	if _, err := svc.Submit(context.Background(), Submission{Question: "{attachment_text}"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if llm.prompts[0] != "Q={attachment_text}|A=" {
		t.Fatalf("question must be inserted verbatim, got %q", llm.prompts[0])
	}
}

func TestNewRejectsNilLLM(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error")
	}
}
