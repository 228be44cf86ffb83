// Package scenario loads HCL scenario files for the demo CLI. A scenario
// declares named inputs (literal host data) and named outputs (expressions
// over those inputs), and builds from them a symbolic container ready to be
// frozen:
//
//	input "x" {
//	  data      = [1, 2, 3]
//	  name_hint = "vel"
//	}
//
//	output "a" {
//	  expr = add(mul(x, x), 1)
//	}
package scenario

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/actx"
	"github.com/alexfikl/arraycontext/internal/ctxlog"
	"github.com/alexfikl/arraycontext/tag"
)

// Input declares one named literal input array.
type Input struct {
	Name     string    `hcl:"name,label"`
	Data     []float64 `hcl:"data"`
	Shape    []int     `hcl:"shape,optional"`
	NameHint string    `hcl:"name_hint,optional"`
}

// Output declares one named output expression. The expression is evaluated
// against the declared inputs and the builtin array functions.
type Output struct {
	Name string         `hcl:"name,label"`
	Expr hcl.Expression `hcl:"expr"`
}

// Config is a parsed scenario file.
type Config struct {
	Inputs  []*Input  `hcl:"input,block"`
	Outputs []*Output `hcl:"output,block"`
}

// Load parses a scenario file.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading scenario.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("scenario: parsing %s: %w", path, diags)
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("scenario: decoding %s: %w", path, diags)
	}

	for _, in := range cfg.Inputs {
		if in.Shape == nil {
			in.Shape = []int{len(in.Data)}
		}
	}
	return &cfg, nil
}

// Build evaluates the scenario against an execution context: inputs become
// symbolic literal-data leaves on the context's queue, outputs are evaluated
// with the builtin functions, and the result is an object container keyed by
// output name.
func Build(ctx context.Context, ac *actx.Context, cfg *Config) (cty.Value, error) {
	vars := make(map[string]cty.Value, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		v, err := ac.FromHost(in.Data, in.Shape...)
		if err != nil {
			return cty.NilVal, fmt.Errorf("scenario: input %q: %w", in.Name, err)
		}
		if in.NameHint != "" {
			v, err = ac.Tag(ctx, tag.NewSet(tag.NameHint{Name: in.NameHint}), v)
			if err != nil {
				return cty.NilVal, fmt.Errorf("scenario: input %q: %w", in.Name, err)
			}
		}
		vars[in.Name] = v
	}

	evalCtx := &hcl.EvalContext{
		Variables: vars,
		Functions: builtins(ac),
	}

	outputs := make(map[string]cty.Value, len(cfg.Outputs))
	for _, out := range cfg.Outputs {
		v, diags := out.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return cty.NilVal, fmt.Errorf("scenario: evaluating output %q: %w", out.Name, diags)
		}
		outputs[out.Name] = v
	}
	if len(outputs) == 0 {
		return cty.NilVal, fmt.Errorf("scenario: no outputs declared")
	}
	return cty.ObjectVal(outputs), nil
}
