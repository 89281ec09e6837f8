// Package checker orchestrates the document pipeline: extract deontic
// formulas, check them against the theorem corpus, optionally attempt
// formal proofs, and synthesize issues and recommendations into one
// analysis. Each phase is isolated so a later failure cannot erase earlier
// results.
package checker

import (
	"context"
	"regexp"
	"strings"

	"normlex/internal/types"
)

// Extractor pulls deontic formulas out of raw document text. Implementations
// must tolerate arbitrary input and never fail hard on malformed text; an
// empty slice is the correct answer for text with no normative content.
type Extractor interface {
	ExtractFormulas(ctx context.Context, text string) ([]types.DeonticFormula, error)
}

// cueRule binds a cue-phrase pattern to a modality. Each pattern captures
// the agent before the cue and the proposition after it.
type cueRule struct {
	pattern    *regexp.Regexp
	op         types.DeonticOperator
	confidence float64
}

// RegexExtractor is the fallback extractor: sentence-level cue-phrase rules
// for the three core modalities. Prohibition cues are tried first so "shall
// not" never matches the obligation rule.
type RegexExtractor struct {
	rules []cueRule
}

// NewRegexExtractor builds the extractor with the default cue-phrase rules.
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{rules: []cueRule{
		{
			pattern:    regexp.MustCompile(`(?i)^(.*?)\s*\b(?:shall not|must not|may not|is (?:strictly )?prohibited from|is forbidden (?:from|to))\s+(.+)$`),
			op:         types.Prohibition,
			confidence: 0.9,
		},
		{
			pattern:    regexp.MustCompile(`(?i)^(.*?)\s*\b(?:shall|must|is required to|is obligated to|is obliged to)\s+(.+)$`),
			op:         types.Obligation,
			confidence: 0.85,
		},
		{
			pattern:    regexp.MustCompile(`(?i)^(.*?)\s*\b(?:is permitted to|is entitled to|has the right to|may)\s+(.+)$`),
			op:         types.Permission,
			confidence: 0.7,
		},
	}}
}

var (
	sentenceSplit  = regexp.MustCompile(`[.;\n]+`)
	conditionSplit = regexp.MustCompile(`(?i)\s*,?\s*\b(if|unless|provided that|except when)\b\s*`)
	leadingArticle = regexp.MustCompile(`(?i)^(?:the|a|an)\s+`)
)

// ExtractFormulas applies the first matching cue rule per sentence. It
// never returns an error: unparseable text simply yields nothing.
func (e *RegexExtractor) ExtractFormulas(_ context.Context, text string) ([]types.DeonticFormula, error) {
	formulas := make([]types.DeonticFormula, 0)
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		for _, rule := range e.rules {
			m := rule.pattern.FindStringSubmatch(sentence)
			if m == nil {
				continue
			}
			agent := normalizeAgent(m[1])
			proposition, conditions := splitConditions(m[2])
			f, err := types.NewDeonticFormula(rule.op, proposition, agent, rule.confidence)
			if err != nil {
				break
			}
			f.SourceText = sentence
			f.Conditions = conditions
			formulas = append(formulas, f)
			break
		}
	}
	return formulas, nil
}

func normalizeAgent(agent string) string {
	agent = strings.TrimSpace(agent)
	agent = leadingArticle.ReplaceAllString(agent, "")
	return strings.TrimSpace(agent)
}

// splitConditions separates trailing conditional clauses from the
// proposition, keeping the conditional marker as part of the condition.
func splitConditions(text string) (string, []string) {
	text = strings.TrimRight(strings.TrimSpace(text), " ,")
	loc := conditionSplit.FindStringSubmatchIndex(text)
	if loc == nil {
		return text, nil
	}
	proposition := strings.TrimRight(strings.TrimSpace(text[:loc[0]]), " ,")
	marker := strings.ToLower(text[loc[2]:loc[3]])
	clause := strings.TrimSpace(text[loc[1]:])
	if proposition == "" || clause == "" {
		return text, nil
	}
	return proposition, []string{marker + " " + clause}
}
