// Package persona holds the six money archetypes and the keyword scoreboard
// that classifies quiz answers into one of them.
package persona

import "strings"

// Persona is one of the six money archetypes a user can be classified into.
type Persona string

const (
	Guardian    Persona = "guardian"
	Planner     Persona = "planner"
	Explorer    Persona = "explorer"
	Avoider     Persona = "avoider"
	Maverick    Persona = "maverick"
	Independent Persona = "independent"
)

// All lists the archetypes in their fixed enumeration order. Ties are resolved
// in favour of the earlier entry.
var All = []Persona{Guardian, Planner, Explorer, Avoider, Maverick, Independent}

type profile struct {
	title       string
	tagline     string
	description string
	prefix      string
	keywords    []string
}

var profiles = map[Persona]profile{
	Guardian: {
		title:       "Guardian",
		tagline:     "Safety-First and Risk-Averse",
		description: "You prefer secure, low-risk financial options",
		prefix:      "For someone who values security like you, ",
		keywords:    []string{"safe", "secure", "careful", "conservative", "protect", "anxious", "worried"},
	},
	Planner: {
		title:       "Planner",
		tagline:     "Methodical and Forward-Thinking",
		description: "You love organizing and planning your finances",
		prefix:      "Since you love planning ahead, ",
		keywords:    []string{"plan", "organize", "track", "budget", "save first", "research", "prepare"},
	},
	Explorer: {
		title:       "Explorer",
		tagline:     "Curious and Open-Minded",
		description: "You enjoy learning about new investment opportunities",
		prefix:      "Given your curiosity about new opportunities, ",
		keywords:    []string{"explore", "learn", "try", "curious", "new", "different", "experiment"},
	},
	Avoider: {
		title:       "Avoider",
		tagline:     "Overwhelmed but Evolving",
		description: "You're working on building better financial habits",
		prefix:      "I know finance can feel overwhelming, so let's keep it simple: ",
		keywords:    []string{"avoid", "ignore", "overwhelming", "boring", "later", "procrastinate"},
	},
	Maverick: {
		title:       "Maverick",
		tagline:     "Bold and Risk-Ready",
		description: "You're comfortable with high-risk, high-reward investments",
		prefix:      "For someone bold like you, ",
		keywords:    []string{"risk", "bold", "quick", "aggressive", "high return", "gamble"},
	},
	Independent: {
		title:       "Independent",
		tagline:     "Analytical and Self-Driven",
		description: "You prefer researching and making your own decisions",
		prefix:      "Since you prefer making your own decisions, ",
		keywords:    []string{"myself", "own", "research", "decide", "analyze", "logic", "data"},
	},
}

// Parse maps a stored identifier back to a Persona. Unknown or empty values
// report false.
func Parse(raw string) (Persona, bool) {
	p := Persona(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := profiles[p]; !ok {
		return "", false
	}
	return p, true
}

func (p Persona) Valid() bool {
	_, ok := profiles[p]
	return ok
}

func (p Persona) String() string { return string(p) }

// Title is the capitalised archetype name, e.g. "Guardian".
func (p Persona) Title() string { return profiles[p].title }

// Headline combines the title and tagline: "Guardian – Safety-First and Risk-Averse".
func (p Persona) Headline() string {
	pr, ok := profiles[p]
	if !ok {
		return ""
	}
	return pr.title + " – " + pr.tagline
}

func (p Persona) Description() string {
	pr, ok := profiles[p]
	if !ok {
		return ""
	}
	return pr.tagline + " - " + pr.description
}

// Prefix is the framing phrase prepended to assistant replies. Empty for
// unknown personas.
func (p Persona) Prefix() string { return profiles[p].prefix }

// Keywords returns a copy of the detection keywords for p.
func (p Persona) Keywords() []string {
	kw := profiles[p].keywords
	out := make([]string, len(kw))
	copy(out, kw)
	return out
}
