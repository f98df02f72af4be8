// Package prompt holds the instruction templates prepended to ingredient
// lists before they are sent upstream, and the response shape each expects.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Shape says how an upstream payload is turned into the caller's reply.
type Shape int

const (
	// Passthrough returns the upstream JSON verbatim.
	Passthrough Shape = iota
	// ExtractContent returns only the upstream "content" string.
	ExtractContent
)

func (s Shape) String() string {
	switch s {
	case Passthrough:
		return "passthrough"
	case ExtractContent:
		return "content"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Revision is a named instruction template together with its response shape.
type Revision struct {
	Name        string
	Summary     string
	Instruction string
	Shape       Shape
}

// DefaultRevision is used when no revision is configured.
const DefaultRevision = "v4"

var revisions = map[string]Revision{
	"v1": {
		Name:    "v1",
		Summary: "health rating on a 1-10 scale with an explanation of the scale",
		Instruction: "Read all ingredients and tell information about how the preservatives and other things used it it is good or bad " +
			"for our health for daily use. Return a rating on scale of 1-10 and also tell what that scale indicate according to you",
		Shape: Passthrough,
	},
	"v2": {
		Name:    "v2",
		Summary: "1-10 rating, answer capped at 150 words",
		Instruction: "Read the following food label ingredients and explain whether the preservatives, additives and other " +
			"ingredients are good or bad for daily consumption. Give a health rating from 1 (very harmful) to 10 (very healthy) " +
			"and keep the whole answer under 150 words.\n\nIngredients: ",
		Shape: Passthrough,
	},
	"v3": {
		Name:    "v3",
		Summary: "markdown report with rating, concerning ingredients and verdict",
		Instruction: "You are a food safety assistant. Analyse the ingredient list below and answer in markdown with three sections: " +
			"## Rating (a score from 1 to 10 where 10 is healthiest), ## Ingredients of concern (a bullet list naming each " +
			"preservative or additive and why it matters), and ## Verdict (one or two sentences on daily use).\n\nIngredients: ",
		Shape: ExtractContent,
	},
	"v4": {
		Name:    "v4",
		Summary: "one-line verdict (Healthy/Moderate/Harmful, N/10) plus short markdown justification",
		Instruction: "You are a food safety assistant. Start your answer with a single line of the form " +
			"\"<Healthy|Moderate|Harmful>, <score>/10\" where 10 is healthiest. Then give at most five markdown bullet points " +
			"naming the preservatives or additives that drove the score. Do not exceed 120 words.\n\nIngredients: ",
		Shape: ExtractContent,
	},
}

// Lookup returns the revision with the given name. An empty name selects
// DefaultRevision.
func Lookup(name string) (Revision, error) {
	if name == "" {
		name = DefaultRevision
	}
	r, ok := revisions[strings.ToLower(name)]
	if !ok {
		return Revision{}, fmt.Errorf("unknown prompt revision %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return r, nil
}

// Names lists the known revision names in order.
func Names() []string {
	names := make([]string, 0, len(revisions))
	for name := range revisions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every known revision ordered by name.
func All() []Revision {
	all := make([]Revision, 0, len(revisions))
	for _, name := range Names() {
		all = append(all, revisions[name])
	}
	return all
}

// WithInstruction returns a copy of r using instruction as its template text.
// An empty instruction leaves r unchanged.
func (r Revision) WithInstruction(instruction string) Revision {
	if instruction != "" {
		r.Instruction = instruction
	}
	return r
}

// Build concatenates the instruction and the caller's ingredient text.
func (r Revision) Build(ingredients string) string {
	return r.Instruction + ingredients
}
