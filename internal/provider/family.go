// Package provider turns a canonical conversation into the request body of
// one of the supported backend model families, and shapes tool-call
// follow-up turns for resubmission.
package provider

import "strings"

// Family is the closed set of backend model families. The family is
// resolved once per request and routed explicitly from then on.
type Family int

const (
	// FamilyClaude is the default: unknown chat models fall through to it.
	FamilyClaude Family = iota
	FamilyNova
	FamilyTitan
	FamilyLlama
	FamilyMistral
)

// Resolve maps a model identifier to its family. Match order is fixed:
// Nova, Titan, Llama, Mistral, then the Claude default.
func Resolve(model string) Family {
	switch {
	case strings.Contains(model, "amazon.nova"):
		return FamilyNova
	case strings.HasPrefix(model, "amazon.titan"):
		return FamilyTitan
	case strings.Contains(model, "meta.llama"):
		return FamilyLlama
	case strings.Contains(model, "mistral.mistral"):
		return FamilyMistral
	default:
		return FamilyClaude
	}
}

func (f Family) String() string {
	switch f {
	case FamilyNova:
		return "nova"
	case FamilyTitan:
		return "titan"
	case FamilyLlama:
		return "llama"
	case FamilyMistral:
		return "mistral"
	default:
		return "claude"
	}
}

// SupportsTools reports whether the family accepts tool specs and tool
// result turns. Titan and Llama are text-only transcripts.
func (f Family) SupportsTools() bool {
	switch f {
	case FamilyClaude, FamilyNova, FamilyMistral:
		return true
	default:
		return false
	}
}

// RequestBody is a formatted provider request: the resolved family tag plus
// the serialized JSON document. The JSON is only ever modified by
// AppendToolRound, which appends turns and never rewrites existing ones.
type RequestBody struct {
	Family Family
	JSON   []byte
}
