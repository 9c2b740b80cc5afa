package generate

import (
	"context"
	"encoding/json"
	"errors"
)

// Generator abstracts providers that turn a job description and resume text
// into a tailored resume artifact.
type Generator interface {
	Generate(ctx context.Context, input Input) (Artifact, error)
}

// Input captures the inputs for one generation run.
type Input struct {
	JDText     string
	ResumeText string
	Mode       string
}

// Artifact is the provider output: a structured resume document plus the
// model that produced it.
type Artifact struct {
	Content json.RawMessage
	Model   string
}

// ErrNotImplemented is returned by the placeholder generator.
var ErrNotImplemented = errors.New("generator not implemented")

// PlaceholderGenerator is a stub implementation until provider wiring is added.
type PlaceholderGenerator struct{}

// Generate returns ErrNotImplemented.
func (PlaceholderGenerator) Generate(ctx context.Context, input Input) (Artifact, error) {
	_ = ctx
	_ = input
	return Artifact{}, ErrNotImplemented
}
