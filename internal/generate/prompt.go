package generate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/clweng/plaintgen/internal/model"
)

// NoStatuteMarker replaces the legal-basis body when statute resolution
// came back empty: the reviewer is told to check the input instead of
// being handed an invented citation.
const NoStatuteMarker = "查無任何相關法條，請確認是否有提供足夠事實資料。"

const factsTmpl = `你是一個台灣原告律師，你現在要幫忙完成車禍起訴狀裏的案件事實陳述的部分，你只需要根據下列格式進行輸出，並確保每個段落內容完整** 禁止輸出格式以外的任何東西 **：
一、事實概述：完整描述事故經過，案件過程盡量越詳細越好，要使用"緣被告"做開頭，並且在這段中都要以"原告""被告"作人物代稱，如果我給你的案件事實中沒有出現原告或被告的姓名，則請直接使用"原告""被告"作為代稱，請絕對不要自己憑空杜撰被告的姓名
備註:請記得在"事實概述"前面加上"一、", 把這部分以一段就完成，不要空行 ** 禁止輸出格式以外的任何東西 **

### 案件事實：
%s

### 參考案件格式（僅供格式參考，不要使用其內容）：
%s`

// FactsPrompt asks for the 事實概述 paragraph, opened with 緣被告, with a
// precedent paragraph along as format reference.
func FactsPrompt(accidentFacts, exemplarFacts string) string {
	return fmt.Sprintf(factsTmpl, accidentFacts, exemplarFacts)
}

const damagesSingleTmpl = `你是一個台灣原告律師，你需要根據“格式範例”填寫車禍起訴狀中的賠償請求部分。請根據以下提供的受傷情形和損失情況，列出所有賠償項目，每個項目需要有明確的金額和原因。
**不要生成總結或者結論。**

%s格式要求：
- 使用（一）、（二）等標記不同賠償項目
- 每個項目需包含標題、金額、事實根據說明
- 金額應以阿拉伯數字呈現，並加上「元」字
- 詳細說明受傷情形、治療過程
- 相關賠償項目可包括但不限於：醫療費用、看護費用、交通費用、工作損失、修車費用、精神慰撫金、修理費用等等
- 嚴格按照範本，不要添加額外資訊如分析建議，總結等等

格式範例：
（一）[損害項目]：[金額]元
[詳細說明該項損害的原因、計算基礎及相關證據]
（二）[損害項目]：[金額]元
[詳細說明該項損害的原因、計算基礎及相關證據]

%s%s請根據下列受傷情形和損失情況，列出詳細賠償請求：

受傷情形：
%s

損失情況：
%s`

const damagesMultiTmpl = `你是一個台灣原告律師，你需要幫忙起草車禍起訴狀中的賠償請求部分。請根據以下提供的受傷情形和損失情況，為每位原告列出所有可能的賠償項目，每個項目需要有明確的金額和原因。
**不要生成總結或者結論。**

%s格式要求：
- 首先使用（一）、（二）等標記區分不同原告
- 每位原告部分下，使用數字1、2、3等標記不同賠償項目
- 若有原告姓名則使用；如無，則使用「原告甲○○」、「原告乙○○」等代稱
- 每個項目需包含標題、金額及詳細說明事實根據
- 金額應以阿拉伯數字呈現，並加上「元」字
- 相關賠償項目可包括但不限於：醫療費用、看護費用、交通費用、工作損失、修車費用、精神慰撫金
- 嚴格按照範本，不要添加額外資訊

格式範例：
（一）原告[姓名/代稱]部分：
1. [損害項目]：[金額]元
[詳細說明該項損害的原因、計算基礎及相關證據]
2. [損害項目]：[金額]元
[詳細說明該項損害的原因、計算基礎及相關證據]

（二）原告[姓名/代稱]部分：
1. [損害項目]：[金額]元
[詳細說明該項損害的原因、計算基礎及相關證據]
2. [損害項目]：[金額]元
[詳細說明該項損害的原因、計算基礎及相關證據]

%s%s請根據下列受傷情形和損失情況，列出詳細賠償請求：

受傷情形：
%s

損失情況：
%s`

// DamagesPrompt builds the stage-one itemization prompt. multi switches
// to the per-plaintiff variant, average > 0 adds the precedent-average
// hint, and exemplar lines ride along as format reference.
func DamagesPrompt(injuries, lossFacts string, multi bool, average int64, plaintiffsInfo string, exemplar []string) string {
	plaintiffBlock := ""
	if plaintiffsInfo != "" {
		plaintiffBlock = "原告資訊：" + plaintiffsInfo + "\n\n"
	}

	avgBlock := ""
	if average > 0 {
		scope := "本案"
		if multi {
			scope = "各原告"
		}
		avgBlock = fmt.Sprintf("請注意：類似案件的平均賠償金額為 %d 元。這僅供參考，不應直接使用此金額，而應根據%s受傷情形和損失明細進行合理估算。\n\n", average, scope)
	}

	exemplarBlock := ""
	if len(exemplar) > 0 {
		exemplarBlock = "參考案件損害項目（僅供格式參考，不要使用其內容）：\n" + strings.Join(exemplar, "\n") + "\n\n"
	}

	tmpl := damagesSingleTmpl
	if multi {
		tmpl = damagesMultiTmpl
	}
	return fmt.Sprintf(tmpl, plaintiffBlock, avgBlock, exemplarBlock, injuries, lossFacts)
}

const tagsTmpl = `你是一個台灣原告律師助手，你的任務是幫忙為賠償請求生成計算標籤。請仔細閱讀以下賠償項目清單，然後為每位原告生成一個計算標籤。

%s賠償項目清單:
%s

請為每位原告生成一個<calculate>標籤，格式如下:
<calculate>原告[姓名/代稱] 金額1 金額2 金額3</calculate>

計算標籤的要求:
1. 標籤內只放數字，不要包含任何文字描述、加號、等號或小計
2. 數字必須是阿拉伯數字，不要使用中文數字
3. 不要在數字中包含逗號或其他分隔符
4. 只列出原始金額，不要自行計算總和
5. 不要在金額后面加上"元"字
6. 若賠償項目清單中有原告名稱請忽略這行，如果原告名稱不明確，才"default"作為標籤識別符

%s

請僅返回計算標籤，不要添加任何其他解釋或說明。`

const tagsSingleExample = `範例:
<calculate>原告[姓名/代稱] 10000 5000 3000 2000</calculate>`

const tagsMultiExample = `範例:
<calculate>原告1[姓名/代稱] 10000 5000 3000</calculate>
<calculate>原告2[姓名/代稱] 8000 2000 5000</calculate>`

// CalculateTagsPrompt builds the stage-two prompt that rewrites an
// itemization into one <calculate> tag per plaintiff.
func CalculateTagsPrompt(itemization, plaintiffsInfo string) string {
	plaintiffBlock := ""
	if plaintiffsInfo != "" {
		plaintiffBlock = "原告資訊：" + plaintiffsInfo + "\n\n"
	}
	example := tagsSingleExample
	if multiPlaintiffInfo(plaintiffsInfo) {
		example = tagsMultiExample
	}
	return fmt.Sprintf(tagsTmpl, plaintiffBlock, itemization, example)
}

// multiPlaintiffInfo reports whether the 原告:甲,乙 party string names
// more than one plaintiff.
func multiPlaintiffInfo(plaintiffsInfo string) bool {
	if plaintiffsInfo == "" {
		return false
	}
	names := strings.Split(strings.ReplaceAll(plaintiffsInfo, "原告:", ""), ",")
	return len(names) > 1
}

const conclusionTmpl = `你是一個台灣原告律師，你需要幫忙完成車禍起訴狀中"綜上所陳"的總結部分。請根據以下提供的賠償項目和總額，生成適當的總結段落。

%s前面列出的賠償項目:
%s

請使用以下格式範本:
綜上所陳，[列出各原告的所有損害項目及對應金額]，%s。並自起訴狀副本送達翌日起至清償日止，按年息5%%計算之利息。
**範本結束**
禁止輸出範本以外的任何東西
數字必須是阿拉伯數字，不要使用中文數字
請確保按照上方原本已列出的賠償項目，列出每一項損害內容及金額
重要：不要自己計算金額及總計，僅使用提供的總額數字。`

// ConclusionPrompt builds the stage-three prompt for the 綜上所陳
// paragraph, with the exact totals clause the draft must repeat.
func ConclusionPrompt(itemization, summaryFormat, plaintiffsInfo string) string {
	plaintiffBlock := ""
	if plaintiffsInfo != "" {
		plaintiffBlock = "原告資訊：" + plaintiffsInfo + "\n\n"
	}
	return fmt.Sprintf(conclusionTmpl, plaintiffBlock, itemization, summaryFormat)
}

// SummaryFormat renders the totals clause for the conclusion prompt:
// 總計N元 for the unnamed total, 應賠償[原告X]之損害，總計N元 per named
// plaintiff, joined with ；. The unnamed total leads, named plaintiffs
// follow sorted, so the clause is deterministic for a given map.
func SummaryFormat(totals map[string]int64) string {
	names := make([]string, 0, len(totals))
	hasDefault := false
	for k := range totals {
		if k == model.DefaultPlaintiffKey {
			hasDefault = true
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(totals))
	if hasDefault {
		parts = append(parts, fmt.Sprintf("總計%d元", totals[model.DefaultPlaintiffKey]))
	}
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("應賠償[原告%s]之損害，總計%d元", name, totals[name]))
	}
	return strings.Join(parts, "；")
}

const caseSummaryTmpl = `規則:
1. 依據輸入的事實描述，生成結構清晰的事故摘要，完整保留所有關鍵資訊，不得遺漏。
2. 僅使用輸入中明確提供的資訊，不得推測或補充未出現在輸入中的內容（例如：刑事判決）。
3. 以簡潔扼要的方式陳述內容，避免冗長敘述，確保資訊清楚易讀。
4. 若某個資訊缺失，則不輸出該項目，填入「無」或「不詳」。
輸出格式：
=======================
[事故緣由]: [內容]
[當天環境]: [內容]
[傷勢情形]: [內容]
=======================
嚴格遵照上述規則，根據輸入資訊生成事故摘要。

事故事實：
%s

受傷情形：
%s`

// CaseSummaryPrompt asks for the bracket-labelled accident summary the
// facts quality check compares against.
func CaseSummaryPrompt(accidentFacts, injuries string) string {
	return fmt.Sprintf(caseSummaryTmpl, accidentFacts, injuries)
}

// LegalBasisText fills the statutory boilerplate: quoted provision texts,
// the article list, and the liability clause. A provision text keeps only
// the wording after a leading 條號 label when one is present.
func LegalBasisText(statutes []model.Statute) string {
	ids := make([]string, 0, len(statutes))
	quoted := make([]string, 0, len(statutes))
	for _, st := range statutes {
		ids = append(ids, st.ID)
		if body := provisionBody(st.Text); body != "" {
			quoted = append(quoted, body)
		}
	}

	var b strings.Builder
	if len(quoted) > 0 {
		b.WriteString("按「")
		b.WriteString(strings.Join(quoted, "」、「"))
		b.WriteString("」，")
	} else {
		b.WriteString("按")
	}
	b.WriteString(strings.Join(ids, "、"))
	b.WriteString("分別定有明文。查被告因上開侵權行為，致原告受有下列損害，依前揭規定，被告應負損害賠償責任：")
	return b.String()
}

// provisionBody strips a leading 條號：label from a provision text.
func provisionBody(text string) string {
	if i := strings.Index(text, "："); i >= 0 {
		return strings.TrimSpace(text[i+len("："):])
	}
	if i := strings.Index(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return strings.TrimSpace(text)
}
