package qc

import "fmt"

const factQualityCheckTmpl = `請評估生成的事故事實段落是否與摘要一致，並檢查是否遺漏重要資訊。

    摘要：
    %s

    生成的事故事實段落：
    %s

    評估標準：
    1. 輸入跟摘要內容是否一致，如事故緣由，受傷情形等資訊
    2. 是否遺漏任何重要資訊
    3. 是否符合法律文書的格式和語言要求
    4. 是否包含摘要中的所有關鍵要素
    5. 不可包含赔偿金

    請僅回答 "pass" 或 "fail"，並提供簡短的理由。格式：
    [結果]: [pass/fail]
    [理由]: [簡短說明為何通過或失敗]
    `

// FactQualityCheckPrompt asks whether a facts draft matches the case
// summary without inventing or dropping key information.
func FactQualityCheckPrompt(factsDraft, summary string) string {
	return fmt.Sprintf(factQualityCheckTmpl, summary, factsDraft)
}

const compensationCheckTmpl = `請評估生成的賠償請求第一部分是否與傷情資訊和損失情況一致，並檢查是否遺漏重要資訊。

%s
受傷情形：
%s

損失情況：
%s

生成的賠償請求第一部分：
%s

評估標準：
1. 是否包含所有原告的賠償項目（如果有多位原告）
2. 賠償項目是否與傷情資訊和損失情況一致
3. 是否遺漏任何重要的賠償項目
4. 賠償項目要有金額，并非僅是描述
5. 不包含總結，評語，分析，及建議等等(嚴格檢查此項)

請僅回答 "pass" 或 "fail"，並提供簡短的理由。格式：
[結果]: [pass/fail]
[理由]: [簡短說明為何通過或失敗]
`

// CompensationCheckPrompt asks whether the damages itemization covers
// every plaintiff and claim with explicit amounts and no commentary.
func CompensationCheckPrompt(itemization, injuries, lossFacts, plaintiffsInfo string) string {
	plaintiffBlock := ""
	if plaintiffsInfo != "" {
		plaintiffBlock = "原告資訊：" + plaintiffsInfo + "\n\n"
	}
	return fmt.Sprintf(compensationCheckTmpl, plaintiffBlock, injuries, lossFacts, itemization)
}
