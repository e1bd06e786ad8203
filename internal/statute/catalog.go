// Package statute resolves the civil-code provisions a complaint should
// cite, combining knowledge-graph tallies over retrieved precedent cases
// with keyword matching against the narrative itself.
package statute

import "strings"

// Article pairs a civil-code provision with a short description and the
// narrative keywords that signal it may apply.
type Article struct {
	ID       string
	Text     string
	Keywords []string
}

// Provisions traffic-accident complaints draw on, in civil-code order.
// Texts are the fallback wording used when the graph records none.
var catalog = []Article{
	{
		ID:       "民法第184條第1項前段",
		Text:     "因故意或過失，不法侵害他人之權利者，負損害賠償責任。",
		Keywords: []string{"未注意", "過失", "損害賠償", "侵害他人", "侵害權利"},
	},
	{
		ID:       "民法第185條",
		Text:     "數人共同不法侵害他人之權利者，連帶負損害賠償責任。",
		Keywords: []string{"共同侵害", "共同行為", "數人侵害", "造意人", "共同加害"},
	},
	{
		ID:       "民法第187條",
		Text:     "無行為能力或限制行為能力人之法定代理人，應負賠償責任。",
		Keywords: []string{"無行為能力", "限制行為能力", "法定代理人", "識別能力", "未成年", "精神障礙"},
	},
	{
		ID:       "民法第188條",
		Text:     "受僱人因執行職務，不法侵害他人之權利者，由僱用人與行為人連帶負責。",
		Keywords: []string{"受僱人", "僱用人", "雇傭", "連帶賠償", "職務上", "雇主責任", "受雇"},
	},
	{
		ID:       "民法第190條",
		Text:     "動物加損害於他人者，由其占有人負損害賠償責任。",
		Keywords: []string{"動物", "寵物", "狗", "貓", "動物攻擊", "動物咬傷"},
	},
	{
		ID:       "民法第191-2條",
		Text:     "動力車輛在使用中致人損害者，駕駛人應負損害賠償責任。",
		Keywords: []string{"汽車", "機車", "交通事故", "高速公路", "動力車輛", "駕駛"},
	},
	{
		ID:       "民法第193條第1項",
		Text:     "不法侵害他人之身體或健康者，應負損害賠償責任。",
		Keywords: []string{"損失", "醫療費用", "工作損失", "薪資", "就醫", "勞動能力", "收入損失"},
	},
	{
		ID:       "民法第195條第1項前段",
		Text:     "不法侵害人格法益而情節重大者，得請求精神慰撫金。",
		Keywords: []string{"精神", "慰撫金", "痛苦", "名譽", "健康", "隱私", "貞操", "人格"},
	},
	{
		ID:       "民法第213條",
		Text:     "負損害賠償責任者，應回復損害發生前之原狀。",
		Keywords: []string{"回復原狀", "回復", "給付金錢", "損害發生"},
	},
	{
		ID:       "民法第216條",
		Text:     "損害賠償包括已發生損害與所失利益。",
		Keywords: []string{"填補損害", "所失利益", "預期利益", "損失補償"},
	},
	{
		ID:       "民法第217條",
		Text:     "被害人與有過失時，法院得減輕賠償金額。",
		Keywords: []string{"被害人與有過失", "過失相抵", "重大損害原因", "損害擴大"},
	},
}

// DescriptionFor returns the catalog wording for a statute ID.
func DescriptionFor(id string) (string, bool) {
	for _, a := range catalog {
		if a.ID == id {
			return a.Text, true
		}
	}
	return "", false
}

// MatchKeywords scans the three narrative sections for applicability
// keywords and returns the statute IDs they point at, in civil-code order.
func MatchKeywords(facts, injuries, compensation string) []string {
	combined := strings.Join([]string{facts, injuries, compensation}, "。")
	var matched []string
	for _, a := range catalog {
		for _, k := range a.Keywords {
			if strings.Contains(combined, k) {
				matched = append(matched, a.ID)
				break
			}
		}
	}
	return matched
}
