// Package prompt fills the fixed support instruction with a user's question
// and any text recovered from an attachment.
package prompt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// SlotQuestion is replaced by the user's question.
	SlotQuestion = "{question}"
	// SlotAttachmentText is replaced by text extracted from an attachment.
	SlotAttachmentText = "{attachment_text}"
)

// DefaultText is the IT support instruction used when no template is configured.
const DefaultText = `
You are a friendly IT support assistant. Solve the user's problem clearly and step-by-step.
If there is an image with text, use it to understand the problem better.
Detect the user's preferred language. If uncertain, respond in English.
Provide concise and easy-to-follow steps.

User's question: {question}
{attachment_text}
`

var (
	ErrMissingQuestionSlot = errors.New("prompt template must contain {question}")

	slotPattern = regexp.MustCompile(`\{[^{}]*\}`)
	escapes     = strings.NewReplacer("{{", "", "}}", "")
)

// Template is an immutable instruction with two named slots.
type Template struct {
	text string
}

// New validates text and returns a Template. Literal braces are written as
// {{ and }}; any other {name} besides the two known slots is rejected.
func New(text string) (*Template, error) {
	bare := escapes.Replace(text)
	seenQuestion := false
	for _, slot := range slotPattern.FindAllString(bare, -1) {
		switch slot {
		case SlotQuestion:
			seenQuestion = true
		case SlotAttachmentText:
		default:
			return nil, fmt.Errorf("prompt template: unknown slot %s", slot)
		}
	}
	if !seenQuestion {
		return nil, ErrMissingQuestionSlot
	}
	return &Template{text: text}, nil
}

// MustNew is like New but panics on an invalid template.
func MustNew(text string) *Template {
	t, err := New(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Default returns the built-in IT support template.
func Default() *Template { return MustNew(DefaultText) }

// Fill substitutes question and attachmentText in a single pass. Inserted
// values are never scanned again, so slot syntax inside them stays literal.
func (t *Template) Fill(question, attachmentText string) string {
	r := strings.NewReplacer(
		"{{", "{",
		"}}", "}",
		SlotQuestion, question,
		SlotAttachmentText, attachmentText,
	)
	return r.Replace(t.text)
}

// Text returns the raw template.
func (t *Template) Text() string { return t.text }
