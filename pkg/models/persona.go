// Persona definitions for the idea chat
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Persona is one of the fixed roles a conversation can be held with.
// The set is closed; the UI renders it from GET /api/personas.
type Persona string

const (
	PersonaDesigner   Persona = "Game Designer"
	PersonaPlayer     Persona = "Game Player"
	PersonaResearcher Persona = "Game Researcher"
)

// Research methods accepted by the Game Researcher persona.
const (
	MethodQualitative  = "qualitative"
	MethodQuantitative = "quantitative"
)

var (
	ErrUnknownPersona      = errors.New("unknown persona")
	ErrPersonaParamMissing = errors.New("persona parameter missing")
)

// PersonaInfo describes a persona for the UI catalog.
type PersonaInfo struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	// Param names the extra parameter this persona requires, empty if none.
	Param string `json:"param,omitempty"`
	// ParamValues lists the allowed values when the parameter is an enum.
	ParamValues []string `json:"param_values,omitempty"`
}

var personaCatalog = []PersonaInfo{
	{
		Name:        string(PersonaDesigner),
		Icon:        "🎮",
		Description: "Expert in game mechanics and systems design",
	},
	{
		Name:        string(PersonaPlayer),
		Icon:        "🎯",
		Description: "Experienced gamer with player perspective",
		Param:       "age",
	},
	{
		Name:        string(PersonaResearcher),
		Icon:        "📊",
		Description: "Analyst focused on gaming trends and metrics",
		Param:       "method",
		ParamValues: []string{MethodQualitative, MethodQuantitative},
	},
}

// Personas returns the full persona catalog in display order.
func Personas() []PersonaInfo {
	out := make([]PersonaInfo, len(personaCatalog))
	copy(out, personaCatalog)
	return out
}

// Valid reports whether p is one of the known personas.
func (p Persona) Valid() bool {
	switch p {
	case PersonaDesigner, PersonaPlayer, PersonaResearcher:
		return true
	}
	return false
}

// Icon returns the display glyph for the persona.
func (p Persona) Icon() string {
	for _, info := range personaCatalog {
		if info.Name == string(p) {
			return info.Icon
		}
	}
	return ""
}

// RequiresParam reports whether the persona needs an extra parameter
// before a prompt may be dispatched.
func (p Persona) RequiresParam() bool {
	return p == PersonaPlayer || p == PersonaResearcher
}

// ValidateParam checks the extra parameter for the persona. Personas
// without a parameter accept anything (the value is ignored).
func (p Persona) ValidateParam(param string) error {
	if !p.Valid() {
		return ErrUnknownPersona
	}
	param = strings.TrimSpace(param)
	switch p {
	case PersonaPlayer:
		if param == "" {
			return fmt.Errorf("%w: age is required for %s", ErrPersonaParamMissing, p)
		}
	case PersonaResearcher:
		if param != MethodQualitative && param != MethodQuantitative {
			return fmt.Errorf("%w: method must be %q or %q for %s",
				ErrPersonaParamMissing, MethodQualitative, MethodQuantitative, p)
		}
	}
	return nil
}

// DecoratePrompt returns the text actually sent upstream. Personas that
// carry a mandatory parameter fold it into the prompt; the designer
// persona sends the raw text unchanged.
func (p Persona) DecoratePrompt(text, param string) string {
	param = strings.TrimSpace(param)
	switch p {
	case PersonaPlayer:
		return fmt.Sprintf("[From a %s-year-old player's perspective] %s", param, text)
	case PersonaResearcher:
		return fmt.Sprintf("[From a %s research perspective] %s", param, text)
	default:
		return text
	}
}
