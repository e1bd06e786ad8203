package generate

import (
	"regexp"
	"strings"
)

// Post-clean patterns for model echo and filler the corpus drafts carry.
var (
	newlineRunPat  = regexp.MustCompile(`\n+`)
	factsEchoPat   = regexp.MustCompile(`^一[、.． ]*事實概述[:：]?\s*`)
	factsHeaderPat = regexp.MustCompile(`^一[、.． ]+`)
	attachmentPat  = regexp.MustCompile(`詳如附件.*?|附件.*?所示`)
	itemMarkerPat  = regexp.MustCompile(`[一二三四五六七八九十]+、`)
)

// CleanFacts normalizes a facts draft: blank lines collapse, the text
// anchors at the 一、 header the prompt demands with at most one more
// line kept after it, and the header comes off because the assembler
// prints its own.
func CleanFacts(text string) string {
	text = newlineRunPat.ReplaceAllString(strings.TrimSpace(text), "\n")
	if start := strings.Index(text, "一、"); start >= 0 {
		rest := text[start:]
		if parts := strings.SplitN(rest, "\n", 3); len(parts) > 2 {
			rest = parts[0] + "\n" + parts[1]
		}
		text = rest
	}
	text = factsEchoPat.ReplaceAllString(text, "")
	text = factsHeaderPat.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CleanDamages trims a damages draft: attachment cross-references go
// away, and anything after the blank line following the last 一、-style
// item marker is cut.
func CleanDamages(text string) string {
	text = attachmentPat.ReplaceAllString(text, "")
	locs := itemMarkerPat.FindAllStringIndex(text, -1)
	if locs == nil {
		return strings.TrimSpace(text)
	}
	last := locs[len(locs)-1][0]
	if cut := strings.Index(text[last:], "\n\n"); cut >= 0 {
		return strings.TrimSpace(text[:last+cut])
	}
	return strings.TrimSpace(text)
}

// CleanConclusion keeps the single summary sentence: from the 綜上所陳
// marker (綜上所述 accepted) to the first newline after it. Without a
// marker the first line is kept.
func CleanConclusion(text string) string {
	text = strings.TrimSpace(text)
	idx := strings.Index(text, "綜上所陳")
	if idx < 0 {
		idx = strings.Index(text, "綜上所述")
	}
	if idx >= 0 {
		text = text[idx:]
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[:nl]
	}
	return strings.TrimSpace(text)
}
