package qc

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/clweng/plaintgen/internal/llm"
	"github.com/clweng/plaintgen/internal/logger"
	"github.com/clweng/plaintgen/internal/model"
	"github.com/clweng/plaintgen/internal/worker"
)

// checkStructure rejects an empty draft or one that leaked another
// section's numbered header into its text.
func checkStructure(sec *model.SectionDraft) string {
	if strings.TrimSpace(sec.Text) == "" {
		return "生成內容為空"
	}
	for _, name := range model.SectionOrder {
		if name == sec.Section {
			continue
		}
		if header := model.SectionHeaders[name]; strings.Contains(sec.Text, header) {
			return fmt.Sprintf("內容夾帶其他章節的標題「%s」", header)
		}
	}
	return ""
}

// checkDamages runs the deterministic damages checks: the calculation
// tags must have parsed into positive per-plaintiff sums, and no claim
// item may be listed twice for the same plaintiff.
func checkDamages(text string, totals map[string]int64) string {
	if len(totals) == 0 {
		return "未能從損害項目計算出賠償總額，請在項目中列明每筆金額"
	}
	for _, name := range sortedKeys(totals) {
		if totals[name] <= 0 {
			return fmt.Sprintf("賠償總額必須為正數，%s之總額為%d元", plaintiffLabel(name), totals[name])
		}
	}
	if dup := duplicateClaimLabel(text); dup != "" {
		return fmt.Sprintf("損害項目「%s」重複列出", dup)
	}
	return ""
}

func plaintiffLabel(name string) string {
	if name == model.DefaultPlaintiffKey {
		return "原告"
	}
	return "原告" + name
}

var (
	plaintiffBlockPat = regexp.MustCompile(`^（[一二三四五六七八九十]+）原告(.+?)部分`)
	claimItemPat      = regexp.MustCompile(`^(?:（[一二三四五六七八九十]+）|[0-9]+[.、．]\s*)(.+?)[:：]`)
)

// duplicateClaimLabel returns the first claim heading that repeats
// within one plaintiff's block, or "". A single-plaintiff itemization
// is one block; multi-plaintiff drafts open a block per（一）原告X部分
// heading, so the same item may recur across plaintiffs.
func duplicateClaimLabel(text string) string {
	seen := make(map[string]bool)
	block := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := plaintiffBlockPat.FindStringSubmatch(line); m != nil {
			block = m[1]
			continue
		}
		m := claimItemPat.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		label := strings.TrimSpace(m[1])
		if label == "" {
			continue
		}
		key := block + "\x00" + label
		if seen[key] {
			return label
		}
		seen[key] = true
	}
	return ""
}

// summarySlice cuts the conclusion down to the text from its 綜上所陳
// (or 綜上所述) marker; a draft without the marker yields nothing and
// fails the amount check outright.
func summarySlice(text string) string {
	if i := strings.Index(text, "綜上所陳"); i >= 0 {
		return text[i:]
	}
	if i := strings.Index(text, "綜上所述"); i >= 0 {
		return text[i:]
	}
	return ""
}

// checkConclusionAmounts enforces the sum invariant with zero
// tolerance: every per-plaintiff total computed from the damages tags
// must appear verbatim in the summary, thousands separators ignored.
// Totals are never adjusted to match the text; a mismatch rejects the
// draft.
func checkConclusionAmounts(text string, totals map[string]int64) string {
	summary := strings.NewReplacer(",", "", "，", "").Replace(summarySlice(text))

	var missing []string
	for _, name := range sortedKeys(totals) {
		amount := strconv.FormatInt(totals[name], 10)
		if !strings.Contains(summary, amount) {
			missing = append(missing, amount)
		}
	}
	if len(missing) > 0 {
		return "總結中缺少以下賠償金額: " + strings.Join(missing, ", ")
	}
	return ""
}

func sortedKeys(totals map[string]int64) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	reasonPat         = regexp.MustCompile(`\[理由\]:(.*?)(?:\n|$)`)
	reasonFallbackPat = regexp.MustCompile(`理由:(.*?)(?:\n|$)`)
)

// verdict is a parsed pass/fail review response.
type verdict struct {
	pass   bool
	reason string
}

// parseVerdict reads the [結果]/[理由] review protocol. Any response
// containing "pass" approves; everything else rejects, with the stated
// reason when one parses and "unparseable verdict" when none does.
func parseVerdict(text string) verdict {
	v := verdict{pass: strings.Contains(strings.ToLower(text), "pass")}
	if m := reasonPat.FindStringSubmatch(text); m != nil {
		v.reason = strings.TrimSpace(m[1])
	} else if m := reasonFallbackPat.FindStringSubmatch(text); m != nil {
		v.reason = strings.TrimSpace(m[1])
	}
	if !v.pass && v.reason == "" {
		v.reason = "unparseable verdict"
	}
	return v
}

// checker issues the LLM-assisted reviews through the shared backend
// limiter.
type checker struct {
	provider llm.Provider
	limiter  *worker.Limiter
	log      *logger.Logger
}

func (c *checker) review(ctx context.Context, prompt string) (verdict, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, worker.BackendLLM); err != nil {
			return verdict{}, err
		}
	}
	resp, err := c.provider.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
	if err != nil {
		return verdict{}, fmt.Errorf("review call: %w", err)
	}
	return parseVerdict(resp.Text), nil
}
