// Package pipeline runs the fixed post → script → analysis generation sequence
// against a language model provider.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/suPer8Hu/content-pipeline/internal/ai"
	"github.com/suPer8Hu/content-pipeline/internal/instructions"
)

type Stage string

const (
	StagePost     Stage = "post"
	StageScript   Stage = "script"
	StageAnalysis Stage = "analysis"
)

// Stages is the execution order.
var Stages = []Stage{StagePost, StageScript, StageAnalysis}

// Outputs maps a stage name to the text it produced.
type Outputs map[string]string

func (o Outputs) clone() Outputs {
	out := make(Outputs, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// InstructionSource supplies the system prompt for a stage.
type InstructionSource interface {
	Load(name string) (string, error)
}

// Observer is notified around each stage. Calls happen on the goroutine
// running the pipeline, in stage order.
type Observer interface {
	StageStarted(stage Stage)
	StageFinished(stage Stage, output string)
}

type nopObserver struct{}

func (nopObserver) StageStarted(Stage)          {}
func (nopObserver) StageFinished(Stage, string) {}

// GenerationError reports the stage that failed. Partial holds the outputs
// of the stages that succeeded before it.
type GenerationError struct {
	Stage   Stage
	Cause   error
	Partial Outputs
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

type stageSpec struct {
	stage        Stage
	instructions string
	input        func(content string, out Outputs) string
}

var stageSpecs = []stageSpec{
	{
		stage:        StagePost,
		instructions: instructions.PostGeneration,
		input: func(content string, _ Outputs) string {
			return content
		},
	},
	{
		stage:        StageScript,
		instructions: instructions.ScriptGeneration,
		input: func(content string, out Outputs) string {
			return "Original idea:\n" + content + "\n\nPost:\n" + out[string(StagePost)]
		},
	},
	{
		stage:        StageAnalysis,
		instructions: instructions.ContentAnalyzer,
		input: func(_ string, out Outputs) string {
			return "Post:\n" + out[string(StagePost)] + "\n\nScript:\n" + out[string(StageScript)]
		},
	},
}

type Pipeline struct {
	provider     ai.Provider
	instructions InstructionSource
	stageTimeout time.Duration
}

// New builds a pipeline. A zero stageTimeout disables the per-stage deadline.
func New(provider ai.Provider, src InstructionSource, stageTimeout time.Duration) *Pipeline {
	return &Pipeline{provider: provider, instructions: src, stageTimeout: stageTimeout}
}

// Run executes every stage in order and returns the outputs keyed by stage
// name. Any stage failure aborts the run with a *GenerationError.
func (p *Pipeline) Run(ctx context.Context, content string, obs Observer) (Outputs, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	out := make(Outputs, len(stageSpecs))

	for _, spec := range stageSpecs {
		if err := ctx.Err(); err != nil {
			return nil, &GenerationError{Stage: spec.stage, Cause: err, Partial: out.clone()}
		}

		obs.StageStarted(spec.stage)
		text, err := p.runStage(ctx, spec, content, out)
		if err != nil {
			return nil, &GenerationError{Stage: spec.stage, Cause: err, Partial: out.clone()}
		}
		out[string(spec.stage)] = text
		obs.StageFinished(spec.stage, text)
	}

	return out, nil
}

func (p *Pipeline) runStage(ctx context.Context, spec stageSpec, content string, out Outputs) (string, error) {
	var system string
	if p.instructions != nil {
		s, err := p.instructions.Load(spec.instructions)
		if err != nil {
			return "", err
		}
		system = s
	}

	if p.stageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.stageTimeout)
		defer cancel()
	}

	return ai.Invoke(ctx, p.provider, system, spec.input(content, out))
}
