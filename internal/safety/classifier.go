// Package safety implements the content gate that sits between pipeline
// stages: a fast lexical denylist check, a local heuristic for ambiguous
// topics, and a single escalation call to the language service when the
// heuristic is suspicious.
package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/fableforge/fableforge/internal/prompt"
)

const spanContextRadius = 20

// Span is one lexical denylist hit with surrounding context.
type Span struct {
	Word     string `json:"word"`
	Context  string `json:"context"`
	Position int    `json:"position"`
}

// Verdict is the outcome of classifying a text.
type Verdict struct {
	Clean       bool     `json:"clean"`
	Spans       []Span   `json:"spans,omitempty"`
	Issues      []string `json:"issues,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

// ambiguousTopics triggers escalation to the external judgment call when no
// denylist word matched outright.
var ambiguousTopics = []string{
	"fight", "battle", "scary", "scared", "afraid", "danger",
	"dangerous", "dark", "stranger", "hurt", "steal", "lie",
	"monster", "nightmare",
}

// Classifier decides whether a text span is child-appropriate.
type Classifier struct {
	provider llm.Provider
	model    string
	loader   *prompt.Loader
	builder  *prompt.Builder

	denylist    []string
	denyRe      *regexp.Regexp
	topicRe     *regexp.Regexp
	callTimeout time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithDenylist replaces the built-in denylist.
func WithDenylist(words []string) Option {
	return func(c *Classifier) {
		c.denylist = words
	}
}

// WithCallTimeout bounds the external judgment call. Zero disables the
// per-call deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		c.callTimeout = d
	}
}

// NewClassifier creates a classifier escalating to the given judge model.
func NewClassifier(provider llm.Provider, model string, opts ...Option) *Classifier {
	c := &Classifier{
		provider: provider,
		model:    model,
		loader:   prompt.NewLoader(),
		builder:  prompt.NewBuilder(),
	}
	c.denylist = c.loader.GetDefaultDenylist()
	for _, opt := range opts {
		opt(c)
	}
	c.denyRe = wordsPattern(c.denylist)
	c.topicRe = wordsPattern(ambiguousTopics)
	return c
}

func wordsPattern(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	escaped := make([]string, 0, len(words))
	for _, w := range words {
		escaped = append(escaped, regexp.QuoteMeta(w))
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}

// Classify runs the lexical check and, when the heuristic is suspicious,
// a single external judgment call. It never makes more than one external
// call per invocation.
func (c *Classifier) Classify(ctx context.Context, text string) (Verdict, error) {
	spans := c.lexicalScan(text)
	if len(spans) > 0 {
		issues := make([]string, 0, len(spans))
		for _, s := range spans {
			issues = append(issues, fmt.Sprintf("found %q in context: %q", s.Word, s.Context))
		}
		logger.Warn("Lexical content check flagged story", logger.Fields{
			"matches": len(spans),
		})
		return Verdict{Clean: false, Spans: spans, Issues: issues}, nil
	}

	if c.topicRe == nil || !c.topicRe.MatchString(text) {
		return Verdict{Clean: true}, nil
	}

	return c.escalate(ctx, text)
}

// lexicalScan returns denylist hits with surrounding context.
func (c *Classifier) lexicalScan(text string) []Span {
	if c.denyRe == nil {
		return nil
	}
	var spans []Span
	for _, loc := range c.denyRe.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		ctxStart := max(0, start-spanContextRadius)
		ctxEnd := min(len(text), end+spanContextRadius)
		spans = append(spans, Span{
			Word:     text[start:end],
			Context:  text[ctxStart:ctxEnd],
			Position: start,
		})
	}
	return spans
}

// judgeResult mirrors the JSON contract of the moderation prompt.
type judgeResult struct {
	Appropriate bool     `json:"appropriate"`
	Issues      []string `json:"issues"`
	Explanation string   `json:"explanation"`
}

// escalate asks the judge model for a verdict. A failed or unparseable
// judgment counts as flagged so the filtering loop can degrade gracefully
// instead of shipping unchecked content.
func (c *Classifier) escalate(ctx context.Context, text string) (Verdict, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	resp, err := c.provider.Complete(ctx, &llm.CompletionRequest{
		Model:        c.model,
		SystemPrompt: c.loader.GetModerationPrompt(),
		UserPrompt:   c.builder.BuildModerationPrompt(text),
	})
	if err != nil {
		logger.Warn("Content judgment call failed, flagging story", logger.Fields{
			"error": err.Error(),
		})
		return Verdict{
			Clean:  false,
			Issues: []string{"content check unavailable"},
		}, nil
	}

	var result judgeResult
	if jsonErr := json.Unmarshal([]byte(stripCodeFences(resp.Text)), &result); jsonErr != nil {
		logger.Warn("Content judgment returned unparseable verdict", logger.Fields{
			"error": jsonErr.Error(),
		})
		return Verdict{
			Clean:  false,
			Issues: []string{"content check returned an unreadable verdict"},
		}, nil
	}

	return Verdict{
		Clean:       result.Appropriate,
		Issues:      result.Issues,
		Explanation: result.Explanation,
	}, nil
}

// stripCodeFences removes markdown code fences some models wrap JSON in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
