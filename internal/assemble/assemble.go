// Package assemble renders an accepted document draft into the final
// complaint text.
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clweng/plaintgen/internal/model"
)

// specialCharPat matches the markup residue stripped from the final
// text, markdown emphasis and bracket noise included.
var specialCharPat = regexp.MustCompile("[#@$%^&*~`\\[\\]]+")

// Assemble joins the four sections in canonical order under their
// numbered headers. It refuses a draft that is missing a section or
// carries one that never passed quality control, and does not mutate
// the draft. The conclusion header runs into its text on the same
// line; the other headers take a line of their own.
func Assemble(draft *model.DocumentDraft) (*model.Document, error) {
	if draft == nil {
		return nil, fmt.Errorf("assemble: nil draft")
	}

	parts := make([]string, 0, len(model.SectionOrder))
	for _, name := range model.SectionOrder {
		sec := draft.Section(name)
		if sec == nil {
			return nil, fmt.Errorf("assemble: draft missing section %s", name)
		}
		if !sec.Accepted {
			return nil, fmt.Errorf("assemble: section %s not accepted", name)
		}
		header := model.SectionHeaders[name]
		if name == model.SectionConclusion {
			parts = append(parts, header+strings.TrimSpace(sec.Text))
			continue
		}
		parts = append(parts, header+"\n"+strings.TrimSpace(sec.Text))
	}

	text := strings.Join(parts, "\n\n")
	text = specialCharPat.ReplaceAllString(text, "")
	return &model.Document{Text: text, Draft: draft}, nil
}
