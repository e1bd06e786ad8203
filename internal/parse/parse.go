// Package parse extracts structure from raw complaint narratives and
// from generated section text: the three-part narrative split, itemized
// claim lines, monetary amounts, and the per-plaintiff computation tags
// emitted by the damages generator.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/clweng/plaintgen/internal/model"
)

// Narrative is the three-part split of a raw complaint narrative.
type Narrative struct {
	AccidentFacts     string
	InjuryDetails     string
	CompensationFacts string
}

// Numbered-section patterns: 一、事故發生緣由 / 二、原告受傷情形 /
// 三、請求賠償的事實根據, with fullwidth or ASCII punctuation.
var (
	factsSectionPat  = regexp.MustCompile(`(?s)一[、.．]\s*事故發生緣由[:：]\s*(.+?)(?:\n\s*二[、.．]|$)`)
	injurySectionPat = regexp.MustCompile(`(?s)二[、.．]\s*原告受傷情形[:：]\s*(.+?)(?:\n\s*三[、.．]|$)`)
	compSectionPat   = regexp.MustCompile(`(?s)三[、.．：:]?\s*請求賠償的事實根據[:：]?\s*(.*)`)

	// Looser fallbacks for narratives without the numbered headers.
	factsLoosePat  = regexp.MustCompile(`(?s)事故發生緣由[:：]?\s*(.*?)(?:原告受傷情形|請求賠償|$)`)
	injuryLoosePat = regexp.MustCompile(`(?s)(?:原告)?受傷情形[:：]?\s*(.*?)(?:請求賠償|$)`)
)

// SplitNarrative splits a raw narrative into accident facts, injury
// details, and compensation facts. The numbered 一、/二、/三、 headers
// are preferred; header-less narratives fall back to looser anchors,
// and a narrative with no anchors at all becomes the facts text.
func SplitNarrative(raw string) Narrative {
	raw = strings.TrimSpace(raw)
	var n Narrative

	if m := factsSectionPat.FindStringSubmatch(raw); m != nil {
		n.AccidentFacts = strings.TrimSpace(m[1])
	} else if m := factsLoosePat.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		n.AccidentFacts = strings.TrimSpace(m[1])
	}

	if m := injurySectionPat.FindStringSubmatch(raw); m != nil {
		n.InjuryDetails = strings.TrimSpace(m[1])
	} else if m := injuryLoosePat.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		n.InjuryDetails = strings.TrimSpace(m[1])
	}

	if m := compSectionPat.FindStringSubmatch(raw); m != nil {
		n.CompensationFacts = strings.TrimSpace(m[1])
	}

	if n.AccidentFacts == "" && n.InjuryDetails == "" && n.CompensationFacts == "" {
		n.AccidentFacts = raw
	}
	return n
}

// Summary block labels like [事故緣由]: 內容.
var summaryBlockPat = regexp.MustCompile(`\[([^\[\]\n]+)\][:：]?\s*(.*)`)

// ParseSummaryBlocks reads the bracket-labelled summary format
// ([事故緣由]: … lines) into a label-to-content map. Unlabelled lines
// continue the previous block.
func ParseSummaryBlocks(text string) map[string]string {
	blocks := make(map[string]string)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "=") {
			continue
		}
		if m := summaryBlockPat.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[1])
			blocks[current] = strings.TrimSpace(m[2])
			continue
		}
		if current != "" {
			if blocks[current] != "" {
				blocks[current] += "\n"
			}
			blocks[current] += line
		}
	}
	return blocks
}

var (
	wanAmountPat   = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*|\d+)\s*萬[\s元]`)
	plainAmountPat = regexp.MustCompile(`(\d{1,3}(?:,\d{3})*|\d+)\s*元`)
)

// ParseAmount reads the first monetary amount from a string: a number
// before 萬元 is scaled by 10000, otherwise a number before 元 is taken
// as-is. Thousands separators are accepted.
func ParseAmount(s string) (int64, bool) {
	if m := wanAmountPat.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err == nil {
			return v * 10000, true
		}
	}
	if m := plainAmountPat.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

// One itemized claim line: optional numbering, an optional 原告X之
// prefix, the claim label, a colon, then the amount text.
var claimLinePat = regexp.MustCompile(`(?m)^\s*(?:（[一二三四五六七八九十]+）\s*|[0-9]+[.、．]\s*)?(?:原告([^\s：:]+?)之)?([^：:\n]+?)[：:](.+)$`)

// ParseClaimLines reads itemized damage-claim lines (醫療費用：50000元,
// optionally numbered or prefixed with 原告X之) into structured claims.
// Lines without a parseable positive amount are skipped.
func ParseClaimLines(text string) []model.DamageClaim {
	var claims []model.DamageClaim
	for _, m := range claimLinePat.FindAllStringSubmatch(text, -1) {
		amount, ok := ParseAmount(m[3])
		if !ok || amount <= 0 {
			continue
		}
		label := strings.TrimSpace(m[2])
		if label == "" {
			continue
		}
		claims = append(claims, model.DamageClaim{
			Label:     label,
			Amount:    amount,
			Plaintiff: strings.TrimSpace(m[1]),
		})
	}
	return claims
}

var (
	calculateTagPat = regexp.MustCompile(`(?s)<calculate>(.*?)</calculate>`)
	plaintiffPat    = regexp.MustCompile(`原告([\p{L}\p{N}_]+)`)
	digitRunPat     = regexp.MustCompile(`\d+`)
)

// ExtractCalculateTags sums the amounts inside each <calculate> block
// of a damages section, keyed by plaintiff. A block naming 原告X is
// keyed by X; unnamed blocks share the "default" key, with later
// unnamed blocks numbered 原告1, 原告2, … in order of appearance.
func ExtractCalculateTags(text string) map[string]int64 {
	sums := make(map[string]int64)
	defaultCount := 0

	for _, m := range calculateTagPat.FindAllStringSubmatch(text, -1) {
		body := m[1]

		id := "default"
		if name := plaintiffPat.FindStringSubmatch(body); name != nil {
			id = name[1]
		} else if _, taken := sums["default"]; taken {
			defaultCount++
			id = "原告" + strconv.Itoa(defaultCount)
		}

		runs := digitRunPat.FindAllString(body, -1)
		if len(runs) == 0 {
			continue
		}
		var total int64
		for _, run := range runs {
			v, err := strconv.ParseInt(run, 10, 64)
			if err != nil {
				continue
			}
			total += v
		}

		if _, taken := sums[id]; taken {
			defaultCount++
			id = "原告" + strconv.Itoa(defaultCount)
		}
		sums[id] = total
	}
	return sums
}
