// Package classify assigns the case-type label that routes a request to
// its prompt and strategy variants. Classification is pure string
// inspection: party counts pick the base label and liability keywords in
// the facts append at most one modifier. It never fails; anything
// unrecognizable gets the single plaintiff/defendant label.
package classify

import (
	"regexp"
	"strings"

	"github.com/clweng/plaintgen/internal/model"
)

// Party markers as written in the corpus: a CJK ordinal (原告甲), a Latin
// letter (原告A) or a digit (原告1) right after the role word. The role
// word followed by ordinary prose does not count.
var (
	plaintiffMarkerPat = regexp.MustCompile("原告([甲乙丙丁戊己庚辛壬癸A-Za-z0-9])")
	defendantMarkerPat = regexp.MustCompile("被告([甲乙丙丁戊己庚辛壬癸A-Za-z0-9])")
)

// Modifier keywords in precedence order; only the first matching rule is
// appended.
var modifierRules = []struct {
	suffix   string
	keywords []string
}{
	{model.ModifierMinor, []string{"未成年", "未滿十八"}},
	{model.ModifierEmployer, []string{"僱用", "受僱", "執行職務"}},
	{model.ModifierAnimal, []string{"動物", "寵物"}},
}

// Classify labels input with a case type. A non-empty override wins
// outright; otherwise the party counts pick the base label and the facts
// text may add one liability modifier.
func Classify(input *model.ParsedInput, override model.CaseType) model.CaseType {
	if override != "" {
		return override
	}
	if input == nil {
		return model.CaseTypeSingle
	}

	ct := baseType(countPlaintiffs(input), countDefendants(input))
	if suffix := modifierFor(factsText(input)); suffix != "" {
		ct += model.CaseType(suffix)
	}
	return ct
}

func baseType(plaintiffs, defendants int) model.CaseType {
	switch {
	case plaintiffs > 1 && defendants > 1:
		return model.CaseTypeMultiBoth
	case plaintiffs > 1:
		return model.CaseTypeMultiPlaintiff
	case defendants > 1:
		return model.CaseTypeMultiDefendant
	default:
		return model.CaseTypeSingle
	}
}

// countPlaintiffs prefers the parsed party list, then the plaintiffs the
// damage claims name, then distinct 原告X markers in the narrative.
func countPlaintiffs(input *model.ParsedInput) int {
	if n := len(input.Plaintiffs); n > 0 {
		return n
	}
	named := make(map[string]struct{})
	for _, claim := range input.DamageClaims {
		if claim.Plaintiff != "" && claim.Plaintiff != model.DefaultPlaintiffKey {
			named[claim.Plaintiff] = struct{}{}
		}
	}
	if len(named) > 0 {
		return len(named)
	}
	return markerCount(plaintiffMarkerPat, narrativeText(input))
}

// countDefendants prefers the parsed party list, then distinct 被告X
// markers in the narrative.
func countDefendants(input *model.ParsedInput) int {
	if n := len(input.Defendants); n > 0 {
		return n
	}
	return markerCount(defendantMarkerPat, narrativeText(input))
}

// markerCount counts distinct single-character party markers, never less
// than one.
func markerCount(pat *regexp.Regexp, text string) int {
	seen := make(map[string]struct{})
	for _, m := range pat.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}
	if len(seen) == 0 {
		return 1
	}
	return len(seen)
}

func narrativeText(input *model.ParsedInput) string {
	if input.RawText != "" {
		return input.RawText
	}
	return input.AccidentFacts + "。" + input.InjuryDescription
}

func factsText(input *model.ParsedInput) string {
	if input.AccidentFacts != "" {
		return input.AccidentFacts
	}
	return input.RawText
}

func modifierFor(facts string) string {
	for _, rule := range modifierRules {
		for _, kw := range rule.keywords {
			if strings.Contains(facts, kw) {
				return rule.suffix
			}
		}
	}
	return ""
}
