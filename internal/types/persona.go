package types

import (
	"errors"
	"fmt"
	"strings"
)

const PersonaKeywordCount = 4

// Persona is read-only for the client; the admin surface owns it.
type Persona struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	TypeSpecificKeywords []string `json:"type_specific_keywords"`
	CommonKeywords       []string `json:"common_keywords"`
	CounselingLevel      int      `json:"counseling_level,omitempty"`
}

func (p Persona) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("persona id is required")
	}
	if len(p.TypeSpecificKeywords) != PersonaKeywordCount {
		return fmt.Errorf("persona %s: expected %d type specific keywords, got %d", p.ID, PersonaKeywordCount, len(p.TypeSpecificKeywords))
	}
	if len(p.CommonKeywords) != PersonaKeywordCount {
		return fmt.Errorf("persona %s: expected %d common keywords, got %d", p.ID, PersonaKeywordCount, len(p.CommonKeywords))
	}
	return nil
}

func (p Persona) DisplayName() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return p.ID
}

func (p Persona) Keywords() []string {
	out := make([]string, 0, len(p.TypeSpecificKeywords)+len(p.CommonKeywords))
	out = append(out, p.TypeSpecificKeywords...)
	out = append(out, p.CommonKeywords...)
	return out
}

type PersonasRecord struct {
	Personas []Persona `json:"personas"`
}
