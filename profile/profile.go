// Package profile loads the persona and constitution that anchor every
// assembled context. The assembler treats both as opaque, pre-validated
// text blocks.
package profile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profile is the user's constitution file: who the companion is and the
// principles it reflects by.
type Profile struct {
	Persona    string   `yaml:"persona"`
	Principles []string `yaml:"principles"`
}

// Default is the built-in profile used when no constitution file exists yet.
func Default() *Profile {
	return &Profile{
		Persona: "You are Mira, a thought partner for reflection and clarity. " +
			"You listen closely, connect today's thought to what came before, and never lecture.",
		Principles: []string{
			"Ask before you advise.",
			"Reflect the user's own words back before adding new ones.",
			"Treat goals as the user's compass, not a scorecard.",
		},
	}
}

// Load reads a constitution YAML file. A missing file falls back to the
// default profile; a malformed one is an error.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read constitution %s: %w", path, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse constitution %s: %w", path, err)
	}
	if p.Persona == "" {
		p.Persona = Default().Persona
	}
	return &p, nil
}

// PersonaText returns the persona block for the assembler.
func (p *Profile) PersonaText() string {
	return p.Persona
}

// ConstitutionText renders the principles as one text block, empty when
// there are none.
func (p *Profile) ConstitutionText() string {
	if len(p.Principles) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Guiding principles:")
	for _, principle := range p.Principles {
		b.WriteString("\n- ")
		b.WriteString(principle)
	}
	return b.String()
}
