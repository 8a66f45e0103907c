// Package personality synthesizes adaptive system prompts.
//
// A lexical classifier maps a query onto a research domain; each domain
// carries a persona with trait weights that shape both the system prompt
// and the LLM sampling parameters. The produced prompt always REPLACES the
// request's system prompt, never appends to it.
package personality

import (
	"fmt"
	"strings"
)

// Domain is the detected character of a query.
type Domain string

const (
	DomainScientist   Domain = "scientist"
	DomainPhilosopher Domain = "philosopher"
	DomainEngineer    Domain = "engineer"
	DomainArtist      Domain = "artist"
)

// LLMParams are sampling parameters derived from the persona.
type LLMParams struct {
	Temperature     float64
	TopP            float64
	PresencePenalty float64
}

// Persona holds the trait weights for one domain.
type Persona struct {
	Domain Domain

	// Scientist traits.
	Skepticism float64
	Rigor      float64
	// Creativity doubles as innovation (engineer) and experimentation
	// (artist); a single dial keeps mutation simple.
	Creativity float64

	// Philosopher traits.
	Abstraction float64
	Dialectic   bool
	References  []string

	// Engineer traits.
	Pragmatism    float64
	Perfectionism float64

	// Artist traits.
	EmotionalDepth float64
}

var domainKeywords = map[Domain][]string{
	DomainScientist: {
		"experiment", "hypothesis", "data", "study", "clinical", "protein",
		"gene", "crispr", "pharmacokinetic", "clearance", "dose", "cell",
		"molecule", "trial", "evidence", "biology", "chemistry", "physics",
		"statistical", "measure",
	},
	DomainPhilosopher: {
		"consciousness", "meaning", "ethics", "ontology", "epistemology",
		"metaphysics", "mind", "entropy", "dialectic", "free will", "truth",
		"moral", "existence", "phenomenology",
	},
	DomainArtist: {
		"music", "melody", "harmony", "chord", "rhythm", "composition",
		"song", "poem", "aesthetic", "painting", "progression", "key of",
	},
	DomainEngineer: {
		"architecture", "system", "database", "latency", "cache", "deploy",
		"rust", "golang", "concurrency", "api", "protocol", "refactor",
		"benchmark", "throughput",
	},
}

// Engine classifies queries and produces domain-specific prompts.
type Engine struct {
	personas map[Domain]Persona
}

// NewEngine creates an engine with the default persona table.
func NewEngine() *Engine {
	return &Engine{
		personas: map[Domain]Persona{
			DomainScientist: {
				Domain:     DomainScientist,
				Skepticism: 0.8,
				Rigor:      0.9,
				Creativity: 0.6,
			},
			DomainPhilosopher: {
				Domain:      DomainPhilosopher,
				Abstraction: 0.9,
				Dialectic:   true,
				References:  []string{"Deleuze", "Hegel", "Kant", "Prigogine"},
			},
			DomainEngineer: {
				Domain:        DomainEngineer,
				Pragmatism:    0.7,
				Creativity:    0.95,
				Perfectionism: 0.8,
			},
			DomainArtist: {
				Domain:         DomainArtist,
				Creativity:     0.85,
				EmotionalDepth: 0.9,
			},
		},
	}
}

// DetectDomain runs the lexical classifier over the query. No-hit queries
// resolve to the engineer persona; ties go to the domain evaluated first
// (scientist, philosopher, artist, engineer).
func (e *Engine) DetectDomain(query string) Domain {
	lower := strings.ToLower(query)

	best := DomainEngineer
	bestScore := 0
	// Fixed evaluation order keeps tie-breaking deterministic.
	for _, domain := range []Domain{DomainScientist, DomainPhilosopher, DomainArtist, DomainEngineer} {
		score := 0
		for _, kw := range domainKeywords[domain] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = domain
			bestScore = score
		}
	}
	return best
}

// SystemPromptFor classifies the query and returns the matching prompt.
func (e *Engine) SystemPromptFor(query string) string {
	return e.SystemPromptForDomain(e.DetectDomain(query))
}

// SystemPromptForDomain renders the persona prompt for a known domain.
func (e *Engine) SystemPromptForDomain(domain Domain) string {
	p, ok := e.personas[domain]
	if !ok {
		p = e.personas[DomainEngineer]
	}
	return p.systemPrompt()
}

// ParamsForDomain derives LLM sampling parameters from the persona traits.
func (e *Engine) ParamsForDomain(domain Domain) LLMParams {
	p, ok := e.personas[domain]
	if !ok {
		p = e.personas[DomainEngineer]
	}

	switch p.Domain {
	case DomainScientist:
		return LLMParams{Temperature: 0.3 + p.Creativity*0.4, TopP: 0.9, PresencePenalty: 0.2}
	case DomainPhilosopher:
		return LLMParams{Temperature: 0.5 + p.Abstraction*0.3, TopP: 0.95, PresencePenalty: 0.0}
	case DomainArtist:
		return LLMParams{Temperature: 0.6 + p.Creativity*0.4, TopP: 0.98, PresencePenalty: -0.1}
	default:
		return LLMParams{Temperature: 0.4 + p.Creativity*0.4, TopP: 0.9, PresencePenalty: 0.1}
	}
}

func (p Persona) systemPrompt() string {
	switch p.Domain {
	case DomainScientist:
		return fmt.Sprintf(
			"You are a scientific co-researcher.\n\n"+
				"PERSONA:\n"+
				"- Skepticism: %.0f%% - question premises and results\n"+
				"- Rigor: %.0f%% - impeccable methodology, precise terminology\n"+
				"- Creativity: %.0f%% - dare to suggest disruptive approaches\n\n"+
				"EXPECTED BEHAVIOR:\n"+
				"- Never accept superficial or obvious results\n"+
				"- Always ask: what contrary evidence exists?\n"+
				"- Use precise, journal-grade terminology\n"+
				"- Cite recent work where relevant and challenge confirmation bias",
			p.Skepticism*100, p.Rigor*100, p.Creativity*100)

	case DomainPhilosopher:
		dialectic := "off"
		if p.Dialectic {
			dialectic = "on"
		}
		return fmt.Sprintf(
			"You are a transdisciplinary philosophical interlocutor.\n\n"+
				"PERSONA:\n"+
				"- Abstraction: %.0f%% - operate at high conceptual levels\n"+
				"- Dialectic: %s - structure arguments as thesis-antithesis-synthesis\n"+
				"- References: %s - use when apt, never force\n\n"+
				"STYLE:\n"+
				"- Think in layers and recursive structures\n"+
				"- Challenge simplistic dichotomies; seek original syntheses",
			p.Abstraction*100, dialectic, strings.Join(p.References, ", "))

	case DomainArtist:
		return fmt.Sprintf(
			"You are a musical and artistic collaborator.\n\n"+
				"PERSONA:\n"+
				"- Experimentation: %.0f%% - harmonic and rhythmic daring\n"+
				"- Emotional depth: %.0f%% - expressive weight first\n\n"+
				"APPROACH:\n"+
				"- Think in progressions, tension and resolution\n"+
				"- Structure serves emotion, not the other way around\n"+
				"- Suggest without imposing",
			p.Creativity*100, p.EmotionalDepth*100)

	default:
		return fmt.Sprintf(
			"You are a systems architect.\n\n"+
				"PERSONA:\n"+
				"- Pragmatism: %.0f%% - balance idealism with realism\n"+
				"- Innovation: %.0f%% - dare to be radical when justified\n"+
				"- Perfectionism: %.0f%% - excellence without paralysis\n\n"+
				"PRINCIPLES:\n"+
				"- Always ask: is this really necessary? What is the simpler alternative?\n"+
				"- Prefer composition over inheritance\n"+
				"- Performance matters, but clarity matters more until profiling says otherwise",
			p.Pragmatism*100, p.Creativity*100, p.Perfectionism*100)
	}
}
