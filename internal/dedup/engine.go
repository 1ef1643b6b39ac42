package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

const (
	DefaultWindow    = 50
	DefaultThreshold = 0.7

	// maxRegenerations bounds the retry loop in Resolve
	maxRegenerations = 1
)

// HistorySource serves the recent generated texts of a scope, newest first
type HistorySource interface {
	RecentTexts(ctx context.Context, scope model.Scope, limit int) ([]string, error)
}

// Verdict is the outcome of one duplicate test
type Verdict struct {
	Duplicate bool    `json:"duplicate"`
	Match     string  `json:"match,omitempty"`
	Exact     bool    `json:"exact,omitempty"`
	Overlap   float64 `json:"overlap,omitempty"`
}

// Regenerate produces replacement content. exclusions carries the text the
// new content must not repeat; forceUnique asks the generator to vary harder.
type Regenerate func(ctx context.Context, exclusions []string, forceUnique bool) (*model.GeneratedContent, error)

// Resolution is the discriminated result of Resolve
type Resolution struct {
	Content     *model.GeneratedContent
	Regenerated bool
	Verdict     Verdict
}

type Engine struct {
	history   HistorySource
	window    int
	threshold float64
	log       zerolog.Logger
}

func NewEngine(history HistorySource, window int, threshold float64, log zerolog.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Engine{
		history:   history,
		window:    window,
		threshold: threshold,
		log:       log,
	}
}

// IsDuplicate tests candidate against history with the engine's threshold
func (e *Engine) IsDuplicate(candidate string, history []string) Verdict {
	return Compare(candidate, history, e.threshold)
}

// Compare reports whether candidate matches any history entry exactly after
// normalization, or shares more than threshold of the smaller token set.
// Texts without word tokens (emoji, punctuation) match only when their
// trimmed raw forms are equal.
func Compare(candidate string, history []string, threshold float64) Verdict {
	norm := Normalize(candidate)
	tokens := Tokens(candidate)
	raw := strings.TrimSpace(candidate)
	best := Verdict{}
	for _, h := range history {
		htokens := Tokens(h)
		if exactMatch(norm, tokens, raw, h, htokens) {
			return Verdict{Duplicate: true, Match: h, Exact: true, Overlap: 1}
		}
		ratio := Overlap(tokens, htokens)
		if ratio > threshold && ratio > best.Overlap {
			best = Verdict{Duplicate: true, Match: h, Overlap: ratio}
		}
	}
	return best
}

func exactMatch(norm string, tokens map[string]struct{}, raw, h string, htokens map[string]struct{}) bool {
	if len(tokens) == 0 && len(htokens) == 0 {
		return raw == strings.TrimSpace(h)
	}
	return Normalize(h) == norm
}

// Check runs the duplicate test against the scope's recent history window.
// A history lookup failure is logged and treated as an empty window.
func (e *Engine) Check(ctx context.Context, scope model.Scope, text string) Verdict {
	history, err := e.history.RecentTexts(ctx, scope, e.window)
	if err != nil {
		e.log.Warn().Err(err).Str("scope", scope.String()).Msg("history lookup failed, skipping duplicate check")
		return Verdict{}
	}
	return e.IsDuplicate(text, history)
}

// Resolve checks first against history and, when it is a duplicate,
// regenerates at most once. The regenerated content is accepted without a
// second check.
func (e *Engine) Resolve(ctx context.Context, scope model.Scope, first *model.GeneratedContent, regenerate Regenerate) (*Resolution, error) {
	res := &Resolution{Content: first}
	res.Verdict = e.Check(ctx, scope, first.Text)

	exclusions := []string{}
	for attempt := 0; res.Verdict.Duplicate && attempt < maxRegenerations; attempt++ {
		exclusions = append(exclusions, res.Verdict.Match)
		e.log.Info().
			Str("scope", scope.String()).
			Bool("exact", res.Verdict.Exact).
			Float64("overlap", res.Verdict.Overlap).
			Msg("duplicate content, regenerating")

		next, err := regenerate(ctx, exclusions, true)
		if err != nil {
			return res, fmt.Errorf("regenerate after duplicate: %w", err)
		}
		res.Content = next
		res.Regenerated = true
	}
	res.Content.DedupSignature = Signature(res.Content.Text)
	return res, nil
}
