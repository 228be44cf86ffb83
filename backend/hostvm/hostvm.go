// Package hostvm is the reference backend: it compiles a named expression
// set into element-wise closures evaluated directly on host buffers. It
// exists so the execution context can run end to end without device
// tooling, and doubles as the model implementation of the backend contract.
package hostvm

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/alexfikl/arraycontext/backend"
	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/expr"
	"github.com/alexfikl/arraycontext/internal/ctxlog"
)

// Compiler lowers expression sets to host-evaluated programs.
type Compiler struct{}

// New creates a host compiler.
func New() *Compiler { return &Compiler{} }

type evalFn func(env map[string]*buffer.Buffer) (*buffer.Buffer, error)

type output struct {
	name string
	eval evalFn
}

type program struct {
	id         string
	entryPoint string
	params     map[string][]int
	outputs    []output
}

// Compile implements backend.Compiler. The input set must be canonical:
// embedded literal data is rejected, since it belongs in the bound arguments
// supplied at execution time.
func (c *Compiler) Compile(ctx context.Context, set *expr.NamedSet, entryPoint string) (backend.Program, error) {
	logger := ctxlog.FromContext(ctx)

	p := &program{
		id:         uuid.NewString(),
		entryPoint: entryPoint,
		params:     make(map[string][]int),
	}

	lower := &lowerer{params: p.params, memo: make(map[expr.Node]evalFn)}
	for _, name := range set.Names() {
		node, err := set.Get(name)
		if err != nil {
			return nil, &backend.CompileError{EntryPoint: entryPoint, Err: err}
		}
		fn, err := lower.lower(node)
		if err != nil {
			return nil, &backend.CompileError{EntryPoint: entryPoint, Err: err}
		}
		p.outputs = append(p.outputs, output{name: name, eval: fn})
	}

	logger.Debug("hostvm: compiled program.",
		"programID", p.id, "entryPoint", entryPoint,
		"outputs", len(p.outputs), "params", len(p.params))
	return p, nil
}

type lowerer struct {
	params map[string][]int
	memo   map[expr.Node]evalFn
}

func (l *lowerer) lower(n expr.Node) (evalFn, error) {
	if fn, ok := l.memo[n]; ok {
		return fn, nil
	}

	var fn evalFn
	switch node := n.(type) {
	case *expr.Placeholder:
		name, shape := node.Name(), node.Shape()
		l.params[name] = shape
		fn = func(env map[string]*buffer.Buffer) (*buffer.Buffer, error) {
			b, ok := env[name]
			if !ok {
				return nil, fmt.Errorf("missing argument %q", name)
			}
			return b, nil
		}

	case *expr.Fill:
		value, shape := node.Value(), node.Shape()
		fn = func(env map[string]*buffer.Buffer) (*buffer.Buffer, error) {
			data := make([]float64, buffer.Size(shape))
			for i := range data {
				data[i] = value
			}
			return buffer.FromHost(nil, data, shape...)
		}

	case *expr.Unary:
		arg, err := l.lower(node.Arg())
		if err != nil {
			return nil, err
		}
		op, shape := node.Op(), node.Shape()
		fn = func(env map[string]*buffer.Buffer) (*buffer.Buffer, error) {
			x, err := arg(env)
			if err != nil {
				return nil, err
			}
			data := make([]float64, x.Len())
			for i := range data {
				data[i] = applyUnary(op, x.At(i))
			}
			return buffer.FromHost(nil, data, shape...)
		}

	case *expr.Binary:
		left, err := l.lower(node.Left())
		if err != nil {
			return nil, err
		}
		right, err := l.lower(node.Right())
		if err != nil {
			return nil, err
		}
		op, shape := node.Op(), node.Shape()
		fn = func(env map[string]*buffer.Buffer) (*buffer.Buffer, error) {
			x, err := left(env)
			if err != nil {
				return nil, err
			}
			y, err := right(env)
			if err != nil {
				return nil, err
			}
			n := buffer.Size(shape)
			data := make([]float64, n)
			for i := range data {
				data[i] = applyBinary(op, broadcastAt(x, i), broadcastAt(y, i))
			}
			return buffer.FromHost(nil, data, shape...)
		}

	case *expr.DataWrapper:
		return nil, fmt.Errorf("embedded literal data reached the compiler; canonicalize first")

	default:
		return nil, fmt.Errorf("unsupported node type %T", n)
	}

	l.memo[n] = fn
	return fn, nil
}

// broadcastAt reads element i, treating single-element buffers as scalars.
func broadcastAt(b *buffer.Buffer, i int) float64 {
	if b.Len() == 1 {
		return b.At(0)
	}
	return b.At(i)
}

func applyUnary(op expr.UnaryOp, x float64) float64 {
	switch op {
	case expr.Neg:
		return -x
	case expr.Abs:
		return math.Abs(x)
	default:
		return math.NaN()
	}
}

func applyBinary(op expr.BinaryOp, x, y float64) float64 {
	switch op {
	case expr.Add:
		return x + y
	case expr.Sub:
		return x - y
	case expr.Mul:
		return x * y
	case expr.Div:
		return x / y
	case expr.Max:
		return math.Max(x, y)
	default:
		return math.NaN()
	}
}

// EntryPoint implements backend.Program.
func (p *program) EntryPoint() string { return p.entryPoint }

// BoundArguments implements backend.Program. Host programs never pre-bind.
func (p *program) BoundArguments() []string { return nil }

// Execute implements backend.Program. It validates argument shapes, runs
// every output closure and returns the named results attached to q.
func (p *program) Execute(ctx context.Context, q *device.Queue, args map[string]*buffer.Buffer) (map[string]*buffer.Buffer, error) {
	logger := ctxlog.FromContext(ctx)

	for name, shape := range p.params {
		b, ok := args[name]
		if !ok {
			return nil, &backend.ExecError{
				EntryPoint: p.entryPoint,
				Err:        fmt.Errorf("missing argument %q", name),
			}
		}
		if got := b.Shape(); !shapesEqual(got, shape) {
			return nil, &backend.ExecError{
				EntryPoint: p.entryPoint,
				Err: fmt.Errorf("argument %q has shape %v, program expects %v",
					name, got, shape),
			}
		}
	}

	results := make(map[string]*buffer.Buffer, len(p.outputs))
	for _, out := range p.outputs {
		b, err := out.eval(args)
		if err != nil {
			return nil, &backend.ExecError{EntryPoint: p.entryPoint, Err: err}
		}
		results[out.name] = b.WithQueue(q)
	}

	logger.Debug("hostvm: program executed.",
		"programID", p.id, "entryPoint", p.entryPoint, "outputs", len(results))
	return results, nil
}

func shapesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
