// Package persona holds the fixed utterances that give the assistant its voice:
// the system prompt, greeting, farewell, apologies and the short prompts the
// console prints while it listens.
//
// A persona can be loaded from a TOML file; any field left empty falls back
// to the built-in default.
package persona

import (
	"fmt"
	"math/rand/v2"

	"github.com/BurntSushi/toml"
)

// Persona is the set of fixed texts used by a conversation session.
type Persona struct {
	Name         string   `toml:"name"`
	SystemPrompt string   `toml:"system_prompt"`
	Welcome      []string `toml:"welcome"`
	Greeting     string   `toml:"greeting"`
	Farewell     string   `toml:"farewell"`

	Apologies Apologies `toml:"apologies"`

	ListeningPrompts  []string `toml:"listening_prompts"`
	ProcessingPrompts []string `toml:"processing_prompts"`
}

// Apologies are spoken in place of a reply when something fails.
type Apologies struct {
	Unintelligible     string `toml:"unintelligible"`
	ServiceUnavailable string `toml:"service_unavailable"`
	ListenUnknown      string `toml:"listen_unknown"`
	ModelError         string `toml:"model_error"`
	Unreachable        string `toml:"unreachable"`
}

// Default returns the built-in emotional support persona.
func Default() Persona {
	return Persona{
		Name: "Emotional Support Assistant",
		SystemPrompt: "You are a compassionate, empathetic, and supportive AI assistant designed to listen " +
			"and provide understanding. Focus on active listening, validation of feelings, and " +
			"offering gentle encouragement. Avoid giving direct advice unless specifically asked. " +
			"Your goal is to create a safe space for the user to express themselves. " +
			"Use warm, reassuring, and thoughtful language. Respond as a supportive friend.",
		Welcome: []string{
			"Welcome to your Emotional Support Assistant.",
			"Say 'exit' or 'quit' anytime you're ready to end our chat.",
		},
		Greeting: "Hello there. I'm here to listen, whatever you're going through. How are you feeling right now?",
		Farewell: "Thank you for sharing with me. Remember, you're not alone. Take care.",
		Apologies: Apologies{
			Unintelligible:     "I didn't quite catch that. Could you please repeat?",
			ServiceUnavailable: "I'm having trouble with my listening service right now. Please check your internet connection.",
			ListenUnknown:      "An unexpected error occurred while I was trying to listen. Could you try again?",
			ModelError:         "It seems there was an issue with the language model. Please check the server logs.",
			Unreachable: "I'm really sorry, but I'm having trouble connecting to the language model right now. " +
				"Please make sure the model server is running and try again.",
		},
		ListeningPrompts: []string{
			"I'm here, ready to listen...",
			"Please tell me what's on your mind.",
			"I'm listening closely...",
			"Go ahead, I'm all ears.",
			"I'm ready when you are.",
			"What would you like to talk about?",
		},
		ProcessingPrompts: []string{
			"Just a moment, let me think about that...",
			"Understood, processing...",
			"Let me consider that for a moment...",
			"Taking that in...",
			"Hmm, reflecting on your words...",
		},
	}
}

// Load reads a persona from a TOML file. An empty path returns the default persona.
func Load(path string) (Persona, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	var file Persona
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Persona{}, fmt.Errorf("decoding persona file %s: %w", path, err)
	}
	p.merge(file)
	return p, nil
}

// merge overlays the non-empty fields of o onto p.
func (p *Persona) merge(o Persona) {
	setString(&p.Name, o.Name)
	setString(&p.SystemPrompt, o.SystemPrompt)
	setString(&p.Greeting, o.Greeting)
	setString(&p.Farewell, o.Farewell)
	setString(&p.Apologies.Unintelligible, o.Apologies.Unintelligible)
	setString(&p.Apologies.ServiceUnavailable, o.Apologies.ServiceUnavailable)
	setString(&p.Apologies.ListenUnknown, o.Apologies.ListenUnknown)
	setString(&p.Apologies.ModelError, o.Apologies.ModelError)
	setString(&p.Apologies.Unreachable, o.Apologies.Unreachable)
	if len(o.Welcome) > 0 {
		p.Welcome = o.Welcome
	}
	if len(o.ListeningPrompts) > 0 {
		p.ListeningPrompts = o.ListeningPrompts
	}
	if len(o.ProcessingPrompts) > 0 {
		p.ProcessingPrompts = o.ProcessingPrompts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Pick returns a random entry of prompts, or "" when there are none.
func Pick(prompts []string) string {
	if len(prompts) == 0 {
		return ""
	}
	return prompts[rand.IntN(len(prompts))]
}
