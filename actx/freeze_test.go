package actx_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/actx"
	"github.com/alexfikl/arraycontext/actx/actxtest"
	"github.com/alexfikl/arraycontext/backend"
	"github.com/alexfikl/arraycontext/backend/hostvm"
	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/container"
	"github.com/alexfikl/arraycontext/device"
	"github.com/alexfikl/arraycontext/expr"
	"github.com/alexfikl/arraycontext/tag"
)

func tagSet(name string) tag.Set {
	return tag.NewSet(tag.NameHint{Name: name})
}

func prefixTag(name string) tag.Tag {
	return tag.PrefixNamed{Prefix: name}
}

func hasPrefix(n expr.Node, name string) bool {
	return n.Tags().Has(prefixTag(name))
}

func mustBuffer(t *testing.T, data []float64, shape ...int) *buffer.Buffer {
	t.Helper()
	b, err := buffer.FromHost(nil, data, shape...)
	require.NoError(t, err)
	return b
}

// plusLiteral builds the symbolic expression <data> + <literal>.
func plusLiteral(t *testing.T, data []float64, literal float64) cty.Value {
	t.Helper()
	x := expr.Wrap(mustBuffer(t, data, len(data)))
	c := expr.Wrap(mustBuffer(t, []float64{literal}))
	sum, err := expr.NewBinary(expr.Add, x, c)
	require.NoError(t, err)
	return container.Symbolic(sum)
}

func newHarness(t *testing.T) *actxtest.Harness {
	t.Helper()
	h, err := actxtest.NewHarness()
	require.NoError(t, err)
	return h
}

func TestFreezeEndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := cty.ObjectVal(map[string]cty.Value{
		"a": plusLiteral(t, []float64{3}, 1),
		"b": container.Concrete(mustBuffer(t, []float64{3})),
	})

	frozen, err := h.Context.Freeze(ctx, first)
	require.NoError(t, err)

	a, ok := container.AsConcrete(frozen.GetAttr("a"))
	require.True(t, ok, "symbolic leaf came back concrete")
	assert.Equal(t, []float64{4}, a.Host())
	assert.Nil(t, a.Queue(), "frozen results are detached")

	b, ok := container.AsConcrete(frozen.GetAttr("b"))
	require.True(t, ok)
	assert.Equal(t, []float64{3}, b.Host())

	assert.Equal(t, 1, h.Compiler.Calls())
	assert.Equal(t, 1, h.TransformCalls())

	// Same structure, different bound values: zero additional compiles.
	second := cty.ObjectVal(map[string]cty.Value{
		"a": plusLiteral(t, []float64{6}, 1),
		"b": container.Concrete(mustBuffer(t, []float64{7})),
	})

	frozen, err = h.Context.Freeze(ctx, second)
	require.NoError(t, err)

	a, ok = container.AsConcrete(frozen.GetAttr("a"))
	require.True(t, ok)
	assert.Equal(t, []float64{7}, a.Host())

	assert.Equal(t, 1, h.Compiler.Calls(), "structurally identical expression reused the program")
	assert.Equal(t, 1, h.TransformCalls())

	stats := h.Context.Stats()
	assert.Equal(t, 1, stats.ProgramMisses)
	assert.Equal(t, 1, stats.ProgramHits)
	assert.Equal(t, 1, stats.TransformMisses)
	assert.Equal(t, 1, stats.TransformHits)
}

func TestFreezeScalars(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("bare scalar", func(t *testing.T) {
		out, err := h.Context.Freeze(ctx, container.Scalar(5))
		require.NoError(t, err)
		f, ok := container.AsScalar(out)
		require.True(t, ok)
		assert.Equal(t, 5.0, f)
	})

	t.Run("scalar leaves pass through", func(t *testing.T) {
		v := cty.ObjectVal(map[string]cty.Value{
			"a": plusLiteral(t, []float64{1}, 1),
			"s": container.Scalar(2.5),
		})
		out, err := h.Context.Freeze(ctx, v)
		require.NoError(t, err)
		f, ok := container.AsScalar(out.GetAttr("s"))
		require.True(t, ok)
		assert.Equal(t, 2.5, f)
	})
}

func TestFreezeTrivialWrap(t *testing.T) {
	// A literal-data wrapper freezes by unwrapping; no compilation happens.
	h := newHarness(t)

	v := cty.ObjectVal(map[string]cty.Value{
		"a": container.Symbolic(expr.Wrap(mustBuffer(t, []float64{1, 2}, 2))),
	})
	frozen, err := h.Context.Freeze(context.Background(), v)
	require.NoError(t, err)

	a, ok := container.AsConcrete(frozen.GetAttr("a"))
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, a.Host())
	assert.Equal(t, 0, h.Compiler.Calls())
}

func TestFreezeComputedLeavesAlwaysCompile(t *testing.T) {
	// Computed leaves are never short-circuited, even when they look cheap:
	// the transform step may propagate metadata onto them.
	h := newHarness(t)

	v := cty.ObjectVal(map[string]cty.Value{
		"z": container.Symbolic(expr.Zeros([]int{3}, buffer.Float64)),
	})
	frozen, err := h.Context.Freeze(context.Background(), v)
	require.NoError(t, err)

	z, ok := container.AsConcrete(frozen.GetAttr("z"))
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 0}, z.Host())
	assert.Equal(t, 1, h.Compiler.Calls())
}

func TestFreezeRoundTrips(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("freeze then thaw preserves value and tags", func(t *testing.T) {
		tagged, err := h.Context.Tag(ctx,
			tagSet("vel"),
			cty.ObjectVal(map[string]cty.Value{"a": plusLiteral(t, []float64{2}, 3)}))
		require.NoError(t, err)

		frozen, err := h.Context.Freeze(ctx, tagged)
		require.NoError(t, err)
		thawed, err := h.Context.Thaw(ctx, frozen)
		require.NoError(t, err)

		node, ok := container.AsSymbolic(thawed.GetAttr("a"))
		require.True(t, ok)
		w, ok := node.(*expr.DataWrapper)
		require.True(t, ok)
		assert.Equal(t, []float64{5}, w.Data().Host())
		assert.True(t, hasPrefix(node, "vel"), "tags survived the round trip")
	})

	t.Run("thaw then freeze preserves value and tags", func(t *testing.T) {
		b := mustBuffer(t, []float64{1, 2}, 2)
		tagged, err := h.Context.Tag(ctx, tagSet("rho"),
			cty.ObjectVal(map[string]cty.Value{"a": container.Concrete(b)}))
		require.NoError(t, err)

		thawed, err := h.Context.Thaw(ctx, tagged)
		require.NoError(t, err)
		frozen, err := h.Context.Freeze(ctx, thawed)
		require.NoError(t, err)

		out, ok := container.AsConcrete(frozen.GetAttr("a"))
		require.True(t, ok)
		assert.Equal(t, []float64{1, 2}, out.Host())
		assert.True(t, out.Tags().Has(prefixTag("rho")))
	})
}

func TestThawRejectsSymbolic(t *testing.T) {
	h := newHarness(t)

	_, err := h.Context.Thaw(context.Background(),
		cty.ObjectVal(map[string]cty.Value{"a": plusLiteral(t, []float64{1}, 1)}))

	var unsupported *actx.UnsupportedLeafTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "thaw", unsupported.Op)
}

func TestUnsupportedLeafRejection(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bad := cty.ObjectVal(map[string]cty.Value{"bad": cty.StringVal("nope")})

	ops := map[string]func() error{
		"freeze": func() error { _, err := h.Context.Freeze(ctx, bad); return err },
		"thaw":   func() error { _, err := h.Context.Thaw(ctx, bad); return err },
		"tag": func() error {
			_, err := h.Context.Tag(ctx, tagSet("x"), bad)
			return err
		},
		"tag_axis": func() error {
			_, err := h.Context.TagAxis(ctx, 0, tagSet("x"), bad)
			return err
		},
		"zeros_like": func() error { _, err := h.Context.ZerosLike(ctx, bad); return err },
		"apply": func() error {
			_, err := h.Context.Apply(ctx, nil, nil, tagSet("x"), cty.StringVal("nope"))
			return err
		},
	}

	for op, call := range ops {
		t.Run(op, func(t *testing.T) {
			err := call()
			var unsupported *actx.UnsupportedLeafTypeError
			require.ErrorAs(t, err, &unsupported)
			assert.Equal(t, "string", unsupported.Got)
			assert.NotEmpty(t, unsupported.Accepted)
		})
	}
}

func TestDeprecatedCoercion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	raw1, err := buffer.NewRaw([]float64{1, 2}, 2)
	require.NoError(t, err)
	raw2, err := buffer.NewRaw([]float64{3}, 1)
	require.NoError(t, err)

	v := cty.ObjectVal(map[string]cty.Value{
		"p": container.Legacy(raw1),
		"q": container.Legacy(raw2),
	})

	frozen, err := h.Context.Freeze(ctx, v)
	require.NoError(t, err)
	assert.Len(t, h.Deprecations.Signals(), 2, "one signal per offending leaf")

	p, ok := container.AsConcrete(frozen.GetAttr("p"))
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, p.Host())

	// The canonical representation yields the same result directly.
	direct := cty.ObjectVal(map[string]cty.Value{
		"p": container.Concrete(buffer.FromRaw(raw1)),
		"q": container.Concrete(buffer.FromRaw(raw2)),
	})
	frozenDirect, err := h.Context.Freeze(ctx, direct)
	require.NoError(t, err)
	pd, _ := container.AsConcrete(frozenDirect.GetAttr("p"))
	assert.Equal(t, p.Host(), pd.Host())
	assert.Len(t, h.Deprecations.Signals(), 2, "canonical inputs signal nothing")
}

// collidingProgram reports an output key the classifier already claimed.
type collidingProgram struct {
	key string
}

func (p *collidingProgram) EntryPoint() string       { return "frozen_collide" }
func (p *collidingProgram) BoundArguments() []string { return nil }
func (p *collidingProgram) Execute(_ context.Context, _ *device.Queue, _ map[string]*buffer.Buffer) (map[string]*buffer.Buffer, error) {
	b, err := buffer.FromHost(nil, []float64{0})
	if err != nil {
		return nil, err
	}
	return map[string]*buffer.Buffer{p.key: b}, nil
}

type fixedCompiler struct {
	prg backend.Program
}

func (c *fixedCompiler) Compile(_ context.Context, _ *expr.NamedSet, _ string) (backend.Program, error) {
	return c.prg, nil
}

func TestMergeDisjointnessFault(t *testing.T) {
	ac, err := actx.New(actx.Options{
		Queue:    device.NewQueue(nil),
		Compiler: &fixedCompiler{prg: &collidingProgram{key: "_ary_b"}},
	})
	require.NoError(t, err)

	v := cty.ObjectVal(map[string]cty.Value{
		"a": plusLiteral(t, []float64{1}, 1),
		"b": container.Concrete(mustBuffer(t, []float64{3})),
	})

	_, err = ac.Freeze(context.Background(), v)
	var fault *actx.InternalConsistencyError
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, fault.Error(), "collides")
}

// preboundProgram violates the pure-function contract.
type preboundProgram struct{}

func (p *preboundProgram) EntryPoint() string       { return "frozen_prebound" }
func (p *preboundProgram) BoundArguments() []string { return []string{"stale"} }
func (p *preboundProgram) Execute(_ context.Context, _ *device.Queue, _ map[string]*buffer.Buffer) (map[string]*buffer.Buffer, error) {
	return nil, nil
}

func TestPreboundArgumentsFault(t *testing.T) {
	ac, err := actx.New(actx.Options{
		Queue:    device.NewQueue(nil),
		Compiler: &fixedCompiler{prg: &preboundProgram{}},
	})
	require.NoError(t, err)

	v := cty.ObjectVal(map[string]cty.Value{"a": plusLiteral(t, []float64{1}, 1)})

	_, err = ac.Freeze(context.Background(), v)
	var fault *actx.InternalConsistencyError
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, fault.Error(), "pre-bound")
}

func TestConcurrentFreezeCompilesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := cty.ObjectVal(map[string]cty.Value{
				"a": plusLiteral(t, []float64{float64(i)}, 1),
			})
			_, errs[i] = h.Context.Freeze(ctx, v)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.Compiler.Calls())
	assert.Equal(t, 1, h.TransformCalls())
}

func TestCompileTraceStages(t *testing.T) {
	var stages []string
	ac, err := actx.New(actx.Options{
		Queue:    device.NewQueue(nil),
		Compiler: hostvm.New(),
		CompileTrace: func(_, stage string) {
			stages = append(stages, stage)
		},
	})
	require.NoError(t, err)

	freeze := func() {
		v := cty.ObjectVal(map[string]cty.Value{"a": plusLiteral(t, []float64{1}, 1)})
		_, err := ac.Freeze(context.Background(), v)
		require.NoError(t, err)
	}

	freeze()
	assert.Equal(t, []string{"pre-transform", "post-transform", "pre-compile", "post-compile"}, stages)

	freeze()
	assert.Len(t, stages, 4, "cache hits trace nothing")
}

func TestBoundedCacheKeepsContract(t *testing.T) {
	compiler := &actxtest.CountingCompiler{Inner: hostvm.New()}
	ac, err := actx.New(actx.Options{
		Queue:      device.NewQueue(nil),
		Compiler:   compiler,
		CacheBound: 1,
	})
	require.NoError(t, err)
	ctx := context.Background()

	sumExpr := func() cty.Value { return plusLiteral(t, []float64{1, 2}, 1) }
	negExpr := func() cty.Value {
		x := expr.Wrap(mustBuffer(t, []float64{1, 2}, 2))
		return container.Symbolic(expr.NewUnary(expr.Neg, x))
	}

	for _, mk := range []func() cty.Value{sumExpr, negExpr, sumExpr} {
		frozen, err := ac.Freeze(ctx, cty.ObjectVal(map[string]cty.Value{"a": mk()}))
		require.NoError(t, err)
		_, ok := container.AsConcrete(frozen.GetAttr("a"))
		assert.True(t, ok)
	}

	// The bound of one evicts the first program before its reuse.
	assert.Equal(t, 3, compiler.Calls())
}

func TestClone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	v := cty.ObjectVal(map[string]cty.Value{"a": plusLiteral(t, []float64{1}, 1)})
	_, err := h.Context.Freeze(ctx, v)
	require.NoError(t, err)

	clone, err := h.Context.Clone()
	require.NoError(t, err)
	assert.Equal(t, actx.CacheStats{}, clone.Stats(), "clones start with empty caches")

	_, err = clone.Freeze(ctx, cty.ObjectVal(map[string]cty.Value{"a": plusLiteral(t, []float64{2}, 1)}))
	require.NoError(t, err)
	assert.Equal(t, 2, h.Compiler.Calls(), "the clone compiled again")
}
