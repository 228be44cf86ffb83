package scenario

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/alexfikl/arraycontext/actx"
	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/container"
	"github.com/alexfikl/arraycontext/expr"
)

// builtins exposes the expression vocabulary available to scenario files.
// Plain numbers are lifted to scalar literal-data leaves, so a scenario run
// with different numeric constants still hits the compilation cache.
func builtins(ac *actx.Context) map[string]function.Function {
	return map[string]function.Function{
		"add":   binaryFn(ac, expr.Add),
		"sub":   binaryFn(ac, expr.Sub),
		"mul":   binaryFn(ac, expr.Mul),
		"div":   binaryFn(ac, expr.Div),
		"max":   binaryFn(ac, expr.Max),
		"neg":   unaryFn(ac, expr.Neg),
		"abs":   unaryFn(ac, expr.Abs),
		"zeros": zerosFn(ac),
	}
}

// toNode brings a scenario expression value into symbolic form.
func toNode(ac *actx.Context, v cty.Value) (expr.Node, error) {
	if node, ok := container.AsSymbolic(v); ok {
		return node, nil
	}
	if b, ok := container.AsConcrete(v); ok {
		return expr.Wrap(b.WithQueue(ac.Queue())), nil
	}
	if f, ok := container.AsScalar(v); ok {
		b, err := buffer.FromHost(ac.Queue(), []float64{f})
		if err != nil {
			return nil, err
		}
		return expr.Wrap(b), nil
	}
	return nil, fmt.Errorf("scenario: %s is not an array value", v.Type().FriendlyName())
}

func binaryFn(ac *actx.Context, op expr.BinaryOp) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "x", Type: cty.DynamicPseudoType},
			{Name: "y", Type: cty.DynamicPseudoType},
		},
		Type: function.StaticReturnType(container.SymbolicType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x, err := toNode(ac, args[0])
			if err != nil {
				return cty.NilVal, err
			}
			y, err := toNode(ac, args[1])
			if err != nil {
				return cty.NilVal, err
			}
			node, err := expr.NewBinary(op, x, y)
			if err != nil {
				return cty.NilVal, err
			}
			return container.Symbolic(node), nil
		},
	})
}

func unaryFn(ac *actx.Context, op expr.UnaryOp) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "x", Type: cty.DynamicPseudoType},
		},
		Type: function.StaticReturnType(container.SymbolicType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			x, err := toNode(ac, args[0])
			if err != nil {
				return cty.NilVal, err
			}
			return container.Symbolic(expr.NewUnary(op, x)), nil
		},
	})
}

func zerosFn(ac *actx.Context) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "shape", Type: cty.List(cty.Number)},
		},
		Type: function.StaticReturnType(container.SymbolicType),
		Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
			var shape []int
			for it := args[0].ElementIterator(); it.Next(); {
				_, dim := it.Element()
				i, _ := dim.AsBigFloat().Int64()
				shape = append(shape, int(i))
			}
			return ac.Zeros(shape, buffer.Float64), nil
		},
	})
}
