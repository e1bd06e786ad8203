package model

import "strings"

// CaseType labels the party structure of a traffic-accident case, using
// the annotation vocabulary of the precedent corpus.
type CaseType string

// Base party structures.
const (
	CaseTypeSingle         CaseType = "單純原被告各一"
	CaseTypeMultiPlaintiff CaseType = "數名原告"
	CaseTypeMultiDefendant CaseType = "數名被告"
	CaseTypeMultiBoth      CaseType = "原被告皆數名"
)

// Modifier suffixes appended to a base label for special liability forms.
const (
	ModifierMinor    = "+§187未成年案型"
	ModifierEmployer = "+§188僱用人案型"
	ModifierAnimal   = "+§190動物案型"
)

// BaseCaseType strips any modifier suffix, leaving the party structure.
func BaseCaseType(ct CaseType) CaseType {
	if i := strings.IndexByte(string(ct), '+'); i >= 0 {
		return CaseType(ct[:i])
	}
	return ct
}

// caseTypeFallback maps corpus annotations to the type retried when a
// filtered search returns nothing. Every entry falls back to the single
// plaintiff/defendant type, which dominates the corpus.
var caseTypeFallback = map[CaseType]CaseType{
	CaseTypeMultiPlaintiff: CaseTypeSingle,
	CaseTypeMultiDefendant: CaseTypeSingle,
	CaseTypeMultiBoth:      CaseTypeSingle,

	CaseTypeMultiPlaintiff + ModifierEmployer: CaseTypeSingle,
	CaseTypeMultiDefendant + ModifierEmployer: CaseTypeSingle,
	CaseTypeMultiBoth + ModifierEmployer:      CaseTypeSingle,

	CaseTypeMultiDefendant + ModifierMinor: CaseTypeSingle,
	CaseTypeMultiBoth + ModifierMinor:      CaseTypeSingle,
}

// NormalizeCaseType returns the fallback type for ct. Unknown labels get
// the default type rather than an error; the retriever records when that
// happens.
func NormalizeCaseType(ct CaseType) CaseType {
	if fallback, ok := caseTypeFallback[ct]; ok {
		return fallback
	}
	return CaseTypeSingle
}

// KnownCaseType reports whether ct belongs to the corpus vocabulary.
func KnownCaseType(ct CaseType) bool {
	if ct == CaseTypeSingle {
		return true
	}
	_, ok := caseTypeFallback[ct]
	return ok
}
