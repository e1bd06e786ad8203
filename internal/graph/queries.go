package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/clweng/plaintgen/internal/parse"
)

// CaseStatutes lists the statutes a single precedent case invoked.
type CaseStatutes struct {
	CaseID string
	Names  []string
	Texts  []string
}

// Sections holds the four pleading sections stored for a precedent case.
// Sections the graph does not carry come back empty.
type Sections struct {
	Facts        string
	Laws         string
	Compensation string
	Conclusion   string
}

// CitedStatutes returns, for each case present in the graph, the distinct
// statute names it invoked together with the statute texts recorded there.
func (c *Client) CitedStatutes(ctx context.Context, caseIDs []string) ([]CaseStatutes, error) {
	if c == nil || c.driver == nil || len(caseIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	session := c.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cited := make([]CaseStatutes, 0, len(caseIDs))
		for _, cid := range caseIDs {
			res, err := tx.Run(ctx, `
MATCH (c:Case {case_id: $cid})-[:包含]->(:Facts)-[:適用]->(l:Laws)-[:包含]->(ld:LawDetail)
RETURN collect(distinct ld.name) AS law_names, collect(distinct ld.text) AS law_texts
`, map[string]any{"cid": cid})
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				names := stringList(rec, "law_names")
				if len(names) == 0 {
					continue
				}
				cited = append(cited, CaseStatutes{
					CaseID: cid,
					Names:  names,
					Texts:  stringList(rec, "law_texts"),
				})
			}
		}
		return cited, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: cited statutes: %w", err)
	}
	return out.([]CaseStatutes), nil
}

// ConclusionAverage reads the 總計 line recorded on each case's conclusion,
// parses the amount and averages it across the cases that carry one. The
// per-case totals are returned alongside the rounded average; an average of
// zero means no case had a parseable total.
func (c *Client) ConclusionAverage(ctx context.Context, caseIDs []string) (map[string]int64, int64, error) {
	if c == nil || c.driver == nil || len(caseIDs) == 0 {
		return nil, 0, nil
	}
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	session := c.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		totals := make(map[string]int64)
		for _, cid := range caseIDs {
			res, err := tx.Run(ctx, `
MATCH (c:Case {case_id: $cid})-[:包含]->(:Facts)-[:適用]->(:Laws)
      -[:計算]->(:Compensation)-[:推導]->(:Conclusion)-[:包含]->(cd:ConclusionDetail)
WHERE cd.name CONTAINS "總計"
RETURN cd.name AS name, cd.value AS value
`, map[string]any{"cid": cid})
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			for _, rec := range records {
				if amount, ok := parse.ParseAmount(stringValue(rec, "value")); ok && amount > 0 {
					totals[cid] = amount
				}
			}
		}
		return totals, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("graph: conclusion totals: %w", err)
	}

	totals := out.(map[string]int64)
	if len(totals) == 0 {
		return totals, 0, nil
	}
	var sum int64
	for _, v := range totals {
		sum += v
	}
	avg := int64(math.Round(float64(sum) / float64(len(totals))))
	return totals, avg, nil
}

// CompensationDetails returns the itemized damage lines recorded for each
// case that has any.
func (c *Client) CompensationDetails(ctx context.Context, caseIDs []string) (map[string][]string, error) {
	if c == nil || c.driver == nil || len(caseIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	session := c.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		details := make(map[string][]string)
		for _, cid := range caseIDs {
			res, err := tx.Run(ctx, `
MATCH (c:Case {case_id: $cid})-[:包含]->(:Facts)-[:適用]->(:Laws)
      -[:計算]->(:Compensation)-[:包含]->(cd:CompensationDetail)
RETURN cd.text AS text
`, map[string]any{"cid": cid})
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			var lines []string
			for _, rec := range records {
				if text := stringValue(rec, "text"); text != "" {
					lines = append(lines, text)
				}
			}
			if len(lines) > 0 {
				details[cid] = lines
			}
		}
		return details, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: compensation details: %w", err)
	}
	return out.(map[string][]string), nil
}

// CaseSections fetches the four pleading sections of one precedent case,
// typically the rerank winner, for use as generation exemplars.
func (c *Client) CaseSections(ctx context.Context, caseID string) (Sections, error) {
	if c == nil || c.driver == nil || caseID == "" {
		return Sections{}, nil
	}
	ctx, cancel := c.queryContext(ctx)
	defer cancel()

	session := c.readSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (c:Case {case_id: $cid})-[:包含]->(f:Facts)
OPTIONAL MATCH (f)-[:適用]->(l:Laws)
OPTIONAL MATCH (l)-[:計算]->(comp:Compensation)
OPTIONAL MATCH (comp)-[:推導]->(con:Conclusion)
RETURN f.description AS facts,
       l.description AS laws,
       comp.description AS compensation,
       con.description AS conclusion
`, map[string]any{"cid": caseID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return Sections{}, nil
		}
		rec := records[0]
		return Sections{
			Facts:        stringValue(rec, "facts"),
			Laws:         stringValue(rec, "laws"),
			Compensation: stringValue(rec, "compensation"),
			Conclusion:   stringValue(rec, "conclusion"),
		}, nil
	})
	if err != nil {
		return Sections{}, fmt.Errorf("graph: case sections: %w", err)
	}
	return out.(Sections), nil
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringList(rec *neo4j.Record, key string) []string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
