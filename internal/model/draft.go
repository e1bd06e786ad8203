package model

// SectionName identifies one of the four complaint sections.
type SectionName string

const (
	SectionFacts      SectionName = "facts"
	SectionLegalBasis SectionName = "legal_basis"
	SectionDamages    SectionName = "damages"
	SectionConclusion SectionName = "conclusion"
)

// SectionOrder is the canonical document order.
var SectionOrder = []SectionName{
	SectionFacts,
	SectionLegalBasis,
	SectionDamages,
	SectionConclusion,
}

// SectionHeaders are the numbered headers the assembler prints.
var SectionHeaders = map[SectionName]string{
	SectionFacts:      "一、事實概述：",
	SectionLegalBasis: "二、法律依據：",
	SectionDamages:    "三、損害項目：",
	SectionConclusion: "四、結論：",
}

// SectionDraft is one generated section with its quality-control state.
type SectionDraft struct {
	Section  SectionName `json:"section"`
	Text     string      `json:"text"`
	Strategy string      `json:"strategy"` // strategy that produced the text
	Attempts int         `json:"attempts"` // drafts produced so far, initial included
	Accepted bool        `json:"accepted"`
}

// DocumentDraft collects the section drafts for one request.
type DocumentDraft struct {
	Sections  map[SectionName]*SectionDraft `json:"sections"`
	CaseType  CaseType                      `json:"case_type"`
	RequestID string                        `json:"request_id"`
	Totals    map[string]int64              `json:"totals,omitempty"` // per-plaintiff sums computed from the damages section
}

// Section returns the draft for name, or nil.
func (d *DocumentDraft) Section(name SectionName) *SectionDraft {
	if d.Sections == nil {
		return nil
	}
	return d.Sections[name]
}

// SetSection stores a draft, allocating the map on first use.
func (d *DocumentDraft) SetSection(s *SectionDraft) {
	if d.Sections == nil {
		d.Sections = make(map[SectionName]*SectionDraft, len(SectionOrder))
	}
	d.Sections[s.Section] = s
}

// Complete reports whether all four sections are present and accepted.
func (d *DocumentDraft) Complete() bool {
	for _, name := range SectionOrder {
		s := d.Section(name)
		if s == nil || !s.Accepted {
			return false
		}
	}
	return true
}

// Diagnostic is the structured report attached when quality control
// abandons a request: the failing section, how many drafts were tried,
// the terminal state, and every rejection reason in order.
type Diagnostic struct {
	RequestID string      `json:"request_id"`
	Section   SectionName `json:"section"`
	Attempts  int         `json:"attempts"`
	State     string      `json:"state"`
	Reasons   []string    `json:"reasons"`
}

// Document is the final assembled complaint.
type Document struct {
	Text  string         `json:"text"`
	Draft *DocumentDraft `json:"draft,omitempty"`
}
