package agents

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed personas.toml
var defaultPersonas []byte

// Persona describes one specialist's angle of review.
type Persona struct {
	Title string `toml:"title"`
	Focus string `toml:"focus"`
}

// Role holds the system prompt of a panel role.
type Role struct {
	System string `toml:"system"`
}

// Personas is the full prompt set of the panel.
type Personas struct {
	Specialists map[string]Persona `toml:"specialists"`
	Generic     Persona            `toml:"generic"`
	Challenger  Role               `toml:"challenger"`
	Arbitrator  Role               `toml:"arbitrator"`
	Synthesizer Role               `toml:"synthesizer"`
}

// DefaultPersonas returns the embedded prompt set.
func DefaultPersonas() *Personas {
	var p Personas
	if _, err := toml.Decode(string(defaultPersonas), &p); err != nil {
		panic(fmt.Sprintf("embedded personas.toml is invalid: %v", err))
	}
	return &p
}

// LoadPersonas overlays the file at path onto the embedded defaults. An empty
// path returns the defaults.
func LoadPersonas(path string) (*Personas, error) {
	p := DefaultPersonas()
	if path == "" {
		return p, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("personas file: %w", err)
	}

	var override Personas
	if _, err := toml.DecodeFile(path, &override); err != nil {
		return nil, fmt.Errorf("failed to parse personas file: %w", err)
	}
	for name, persona := range override.Specialists {
		p.Specialists[name] = persona
	}
	if override.Generic.Focus != "" {
		p.Generic = override.Generic
	}
	if override.Challenger.System != "" {
		p.Challenger = override.Challenger
	}
	if override.Arbitrator.System != "" {
		p.Arbitrator = override.Arbitrator
	}
	if override.Synthesizer.System != "" {
		p.Synthesizer = override.Synthesizer
	}
	return p, nil
}

// Specialist returns the persona for name, falling back to the generic
// persona with the name as its title.
func (p *Personas) Specialist(name string) Persona {
	if persona, ok := p.Specialists[name]; ok {
		return persona
	}
	return Persona{Title: name + " reviewer", Focus: p.Generic.Focus}
}
