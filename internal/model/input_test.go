package model

import (
	"errors"
	"testing"
)

func validInput() *ParsedInput {
	return &ParsedInput{
		AccidentFacts:     "被告駕駛自用小客車於路口未注意車前狀況，撞擊原告騎乘之機車。",
		InjuryDescription: "原告受有右腿骨折、多處擦挫傷之傷害。",
		DamageClaims: []DamageClaim{
			{Label: "醫療費用", Amount: 50000},
			{Label: "工作損失", Amount: 100000},
			{Label: "慰撫金", Amount: 30000},
		},
	}
}

func TestParsedInputValidate(t *testing.T) {
	if err := validInput().Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ParsedInput)
	}{
		{"empty facts", func(p *ParsedInput) { p.AccidentFacts = "  " }},
		{"empty injuries", func(p *ParsedInput) { p.InjuryDescription = "" }},
		{"no claims", func(p *ParsedInput) { p.DamageClaims = nil }},
		{"unlabeled claim", func(p *ParsedInput) { p.DamageClaims[0].Label = "" }},
		{"zero amount", func(p *ParsedInput) { p.DamageClaims[1].Amount = 0 }},
		{"negative amount", func(p *ParsedInput) { p.DamageClaims[2].Amount = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(in)
			err := in.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error not wrapping ErrInvalidInput: %v", err)
			}
		})
	}
}

func TestTotalsByPlaintiff(t *testing.T) {
	in := validInput()
	totals := in.TotalsByPlaintiff()
	if len(totals) != 1 {
		t.Fatalf("expected single default bucket, got %d", len(totals))
	}
	if totals[DefaultPlaintiffKey] != 180000 {
		t.Errorf("default total = %d, want 180000", totals[DefaultPlaintiffKey])
	}

	in.DamageClaims = []DamageClaim{
		{Label: "醫療費用", Amount: 50000, Plaintiff: "甲"},
		{Label: "慰撫金", Amount: 30000, Plaintiff: "甲"},
		{Label: "醫療費用", Amount: 20000, Plaintiff: "乙"},
	}
	totals = in.TotalsByPlaintiff()
	if totals["甲"] != 80000 || totals["乙"] != 20000 {
		t.Errorf("per-plaintiff totals = %v, want 甲:80000 乙:20000", totals)
	}
	if in.GrandTotal() != 100000 {
		t.Errorf("grand total = %d, want 100000", in.GrandTotal())
	}
}
