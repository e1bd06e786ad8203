package generate

import (
	"strings"
	"testing"

	"github.com/clweng/plaintgen/internal/model"
)

func TestLegalBasisText(t *testing.T) {
	statutes := []model.Statute{
		{ID: "民法第191-2條", Text: "民法第191-2條：動力車輛在使用中致人損害者，駕駛人應負損害賠償責任。", Support: 3},
		{ID: "民法第184條第1項前段", Text: "因故意或過失，不法侵害他人之權利者，負損害賠償責任。", Support: 2},
	}

	want := "按「動力車輛在使用中致人損害者，駕駛人應負損害賠償責任。」、「因故意或過失，不法侵害他人之權利者，負損害賠償責任。」，" +
		"民法第191-2條、民法第184條第1項前段分別定有明文。" +
		"查被告因上開侵權行為，致原告受有下列損害，依前揭規定，被告應負損害賠償責任："

	if got := LegalBasisText(statutes); got != want {
		t.Errorf("LegalBasisText:\ngot  %q\nwant %q", got, want)
	}
}

func TestLegalBasisTextWithoutBodies(t *testing.T) {
	statutes := []model.Statute{
		{ID: "民法第184條第1項前段"},
		{ID: "民法第191-2條"},
	}
	got := LegalBasisText(statutes)
	if !strings.HasPrefix(got, "按民法第184條第1項前段、民法第191-2條分別定有明文。") {
		t.Errorf("LegalBasisText without bodies = %q", got)
	}
	if strings.Contains(got, "「") {
		t.Errorf("no quoting expected without provision bodies: %q", got)
	}
}

func TestSummaryFormat(t *testing.T) {
	tests := []struct {
		name   string
		totals map[string]int64
		want   string
	}{
		{
			name:   "unnamed total",
			totals: map[string]int64{model.DefaultPlaintiffKey: 180000},
			want:   "總計180000元",
		},
		{
			name:   "named plaintiffs sorted",
			totals: map[string]int64{"王小明": 50000, "丁一": 30000},
			want:   "應賠償[原告丁一]之損害，總計30000元；應賠償[原告王小明]之損害，總計50000元",
		},
		{
			name:   "unnamed leads named",
			totals: map[string]int64{"甲": 50000, model.DefaultPlaintiffKey: 180000},
			want:   "總計180000元；應賠償[原告甲]之損害，總計50000元",
		},
		{
			name:   "empty",
			totals: nil,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SummaryFormat(tt.totals); got != tt.want {
				t.Errorf("SummaryFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFactsPrompt(t *testing.T) {
	prompt := FactsPrompt("被告駕車闖紅燈撞擊原告", "一、事實概述：緣被告於某日駕車……")

	for _, want := range []string{
		"緣被告",
		"案件事實",
		"被告駕車闖紅燈撞擊原告",
		"參考案件格式",
		"一、事實概述：緣被告於某日駕車……",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("facts prompt missing %q", want)
		}
	}
}

func TestDamagesPromptSingle(t *testing.T) {
	prompt := DamagesPrompt("右腿骨折", "醫療費用：50000元", false, 0, "", nil)

	if !strings.Contains(prompt, "（一）[損害項目]：[金額]元") {
		t.Error("single variant should show the flat item example")
	}
	if strings.Contains(prompt, "為每位原告") {
		t.Error("single variant should not mention per-plaintiff itemization")
	}
	if strings.Contains(prompt, "平均賠償金額") {
		t.Error("no average hint expected when average is zero")
	}
	if !strings.Contains(prompt, "受傷情形：\n右腿骨折") {
		t.Error("injuries block missing")
	}
	if !strings.Contains(prompt, "損失情況：\n醫療費用：50000元") {
		t.Error("loss block missing")
	}
}

func TestDamagesPromptMultiWithContext(t *testing.T) {
	prompt := DamagesPrompt(
		"原告甲骨折、原告乙腦震盪",
		"原告甲之醫療費用：50000元",
		true,
		235000,
		"原告:甲,乙",
		[]string{"醫療費用：30000元", "精神慰撫金：80000元"},
	)

	for _, want := range []string{
		"為每位原告列出",
		"（一）原告[姓名/代稱]部分：",
		"請注意：類似案件的平均賠償金額為 235000 元",
		"根據各原告受傷情形",
		"原告資訊：原告:甲,乙",
		"參考案件損害項目",
		"精神慰撫金：80000元",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("multi damages prompt missing %q", want)
		}
	}
}

func TestCalculateTagsPrompt(t *testing.T) {
	single := CalculateTagsPrompt("（一）醫療費用：50000元", "原告:甲")
	if !strings.Contains(single, "<calculate>原告[姓名/代稱] 10000 5000 3000 2000</calculate>") {
		t.Error("single-plaintiff example missing")
	}
	if strings.Contains(single, "原告2[姓名/代稱]") {
		t.Error("multi example leaked into single prompt")
	}

	multi := CalculateTagsPrompt("（一）原告甲部分：…", "原告:甲,乙")
	if !strings.Contains(multi, "<calculate>原告2[姓名/代稱] 8000 2000 5000</calculate>") {
		t.Error("multi-plaintiff example missing")
	}
	if !strings.Contains(multi, "賠償項目清單:\n（一）原告甲部分：…") {
		t.Error("itemization block missing")
	}
}

func TestConclusionPrompt(t *testing.T) {
	prompt := ConclusionPrompt("（一）醫療費用：50000元", "總計180000元", "原告:甲")

	if !strings.Contains(prompt, "總計180000元。並自起訴狀副本送達翌日起至清償日止，按年息5%計算之利息。") {
		t.Error("totals clause or interest boilerplate malformed")
	}
	if !strings.Contains(prompt, "前面列出的賠償項目:\n（一）醫療費用：50000元") {
		t.Error("itemization block missing")
	}
	if !strings.Contains(prompt, "原告資訊：原告:甲") {
		t.Error("plaintiff block missing")
	}
}

func TestCaseSummaryPrompt(t *testing.T) {
	prompt := CaseSummaryPrompt("被告駕車撞擊原告", "原告右腿骨折")
	for _, want := range []string{"[事故緣由]", "[當天環境]", "[傷勢情形]", "被告駕車撞擊原告", "原告右腿骨折"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("case summary prompt missing %q", want)
		}
	}
}

func TestPlaintiffsInfo(t *testing.T) {
	if got := PlaintiffsInfo(nil); got != "" {
		t.Errorf("PlaintiffsInfo(nil) = %q", got)
	}
	if got := PlaintiffsInfo(&model.ParsedInput{}); got != "" {
		t.Errorf("PlaintiffsInfo(empty) = %q", got)
	}
	input := &model.ParsedInput{Plaintiffs: []string{"王小明", "王美玲"}}
	if got := PlaintiffsInfo(input); got != "原告:王小明,王美玲" {
		t.Errorf("PlaintiffsInfo = %q", got)
	}
}

func TestMultiPlaintiffInfo(t *testing.T) {
	tests := []struct {
		info string
		want bool
	}{
		{"", false},
		{"原告:甲", false},
		{"原告:甲,乙", true},
		{"原告:王小明,王美玲,王大同", true},
	}
	for _, tt := range tests {
		if got := multiPlaintiffInfo(tt.info); got != tt.want {
			t.Errorf("multiPlaintiffInfo(%q) = %v, want %v", tt.info, got, tt.want)
		}
	}
}

func TestCleanFacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "anchored with echoed header",
			in:   "好的，以下是生成結果：\n\n一、事實概述：緣被告駕車撞擊原告。\n補充說明。\n多餘的第三行",
			want: "緣被告駕車撞擊原告。\n補充說明。",
		},
		{
			name: "bare numbered prefix",
			in:   "一、緣被告於路口闖紅燈。",
			want: "緣被告於路口闖紅燈。",
		},
		{
			name: "no anchor passes through",
			in:   "緣被告駕車撞擊原告。",
			want: "緣被告駕車撞擊原告。",
		},
		{
			name: "blank lines collapse",
			in:   "一、事實概述：緣被告超速。\n\n\n受傷經過如下。",
			want: "緣被告超速。\n受傷經過如下。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanFacts(tt.in); got != tt.want {
				t.Errorf("CleanFacts(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanDamages(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "attachment reference removed",
			in:   "（一）修車費用：30000元\n有估價單為憑，如附件三所示。",
			want: "（一）修車費用：30000元\n有估價單為憑，如。",
		},
		{
			name: "trailing commentary cut after last item",
			in:   "一、醫療費用：50000元\n實際支出。\n二、精神慰撫金：100000元\n原告受有痛苦。\n\n以上為本案分析總結。",
			want: "一、醫療費用：50000元\n實際支出。\n二、精神慰撫金：100000元\n原告受有痛苦。",
		},
		{
			name: "no marker passes through",
			in:   "（一）醫療費用：50000元\n\n（二）慰撫金：100000元",
			want: "（一）醫療費用：50000元\n\n（二）慰撫金：100000元",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanDamages(tt.in); got != tt.want {
				t.Errorf("CleanDamages(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanConclusion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "keeps from marker",
			in:   "好的，總結如下：\n綜上所陳，被告應賠償總計180000元。\n如有疑問請告知。",
			want: "綜上所陳，被告應賠償總計180000元。",
		},
		{
			name: "accepts 綜上所述",
			in:   "綜上所述，被告應賠償總計90000元。",
			want: "綜上所述，被告應賠償總計90000元。",
		},
		{
			name: "no marker keeps first line",
			in:   "被告應賠償原告。\n第二行",
			want: "被告應賠償原告。",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanConclusion(tt.in); got != tt.want {
				t.Errorf("CleanConclusion(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
