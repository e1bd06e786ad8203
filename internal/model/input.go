package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks requests rejected before any backend work starts.
var ErrInvalidInput = errors.New("invalid input")

// DamageClaim is one itemized damage with its requested amount.
type DamageClaim struct {
	Label     string `json:"label"`               // e.g. "醫療費用"
	Amount    int64  `json:"amount"`              // requested amount in NTD
	Plaintiff string `json:"plaintiff,omitempty"` // claiming plaintiff; empty in single-plaintiff cases
}

// ParsedInput is the structured request for one complaint.
type ParsedInput struct {
	AccidentFacts     string        `json:"accident_facts"`     // accident narrative
	InjuryDescription string        `json:"injury_description"` // injuries sustained
	DamageClaims      []DamageClaim `json:"damage_claims"`      // itemized claims
	Plaintiffs        []string      `json:"plaintiffs,omitempty"`
	Defendants        []string      `json:"defendants,omitempty"`
	RawText           string        `json:"raw_text,omitempty"` // unsplit narrative, used when structured fields are empty
}

// Validate checks that the input can produce a complaint at all.
// Failures here never reach a backend.
func (p *ParsedInput) Validate() error {
	if strings.TrimSpace(p.AccidentFacts) == "" {
		return fmt.Errorf("%w: accident facts are empty", ErrInvalidInput)
	}
	if strings.TrimSpace(p.InjuryDescription) == "" {
		return fmt.Errorf("%w: injury description is empty", ErrInvalidInput)
	}
	if len(p.DamageClaims) == 0 {
		return fmt.Errorf("%w: no damage claims", ErrInvalidInput)
	}
	for i, c := range p.DamageClaims {
		if strings.TrimSpace(c.Label) == "" {
			return fmt.Errorf("%w: damage claim %d has no label", ErrInvalidInput, i)
		}
		if c.Amount <= 0 {
			return fmt.Errorf("%w: damage claim %q has non-positive amount %d", ErrInvalidInput, c.Label, c.Amount)
		}
	}
	return nil
}

// DefaultPlaintiffKey aggregates claims that name no plaintiff.
const DefaultPlaintiffKey = "default"

// TotalsByPlaintiff sums claim amounts per plaintiff. Claims without a
// plaintiff aggregate under DefaultPlaintiffKey.
func (p *ParsedInput) TotalsByPlaintiff() map[string]int64 {
	totals := make(map[string]int64)
	for _, c := range p.DamageClaims {
		key := c.Plaintiff
		if key == "" {
			key = DefaultPlaintiffKey
		}
		totals[key] += c.Amount
	}
	return totals
}

// GrandTotal sums every claim amount.
func (p *ParsedInput) GrandTotal() int64 {
	var total int64
	for _, c := range p.DamageClaims {
		total += c.Amount
	}
	return total
}
