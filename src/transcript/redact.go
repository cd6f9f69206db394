package transcript

import (
	"context"
	"regexp"
)

// Redactor masks personal data before it is persisted.
type Redactor interface {
	Redact(s string) (string, bool)
}

type RegexRedactor struct {
	rx []*regexp.Regexp
}

func NewDefaultRedactor() *RegexRedactor {
	return &RegexRedactor{
		rx: []*regexp.Regexp{
			regexp.MustCompile(`\b[\w\.-]+@[\w\.-]+\.\w+\b`),                      // emails
			regexp.MustCompile(`\b(?:\+?\d{1,3}[\s-]?)?(?:\d{3}[\s-]?){2,4}\d\b`), // phones-ish
		},
	}
}

func (r *RegexRedactor) Redact(s string) (string, bool) {
	changed := false
	out := s
	for _, re := range r.rx {
		if re.MatchString(out) {
			out = re.ReplaceAllString(out, "[REDACTED]")
			changed = true
		}
	}
	return out, changed
}

// RedactingStore scrubs the free-text fields of each record before handing
// it to the wrapped store.
type RedactingStore struct {
	Store
	Redactor Redactor
}

func WithRedaction(st Store, r Redactor) *RedactingStore {
	if r == nil {
		r = NewDefaultRedactor()
	}
	return &RedactingStore{Store: st, Redactor: r}
}

func (s *RedactingStore) Save(ctx context.Context, rec Record) error {
	rec.Question, _ = s.Redactor.Redact(rec.Question)
	rec.AttachmentText, _ = s.Redactor.Redact(rec.AttachmentText)
	rec.Answer, _ = s.Redactor.Redact(rec.Answer)
	return s.Store.Save(ctx, rec)
}
