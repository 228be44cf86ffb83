package actx

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/alexfikl/arraycontext/backend"
	"github.com/alexfikl/arraycontext/buffer"
	"github.com/alexfikl/arraycontext/container"
	"github.com/alexfikl/arraycontext/expr"
)

// Freeze materializes every leaf of v: symbolic expressions are compiled
// (or fetched from the compilation caches), executed with their extracted
// literal values, and merged back with the already-concrete leaves,
// preserving the container's original shape. The returned container holds
// only concrete leaves, all detached from the queue.
//
// Freezing two structurally identical containers invokes the graph
// transform and the compiler at most once: the cache key is the canonical
// form of the symbolic portion, which is invariant to the embedded literal
// values.
func (c *Context) Freeze(ctx context.Context, v cty.Value) (cty.Value, error) {
	logger := c.logger(ctx)

	// Bare scalars freeze to themselves.
	if v.Type() == cty.Number {
		return v, nil
	}

	cls, err := c.classify(ctx, v)
	if err != nil {
		return cty.NilVal, err
	}
	frozen := cls.concrete

	if len(cls.symbolic) > 0 {
		set := expr.NewNamedSet(cls.symbolic)
		canonical, bound, err := canonicalize(set)
		if err != nil {
			return cty.NilVal, err
		}
		logger.Debug("Canonicalized symbolic leaves.",
			"leaves", set.Len(), "boundArguments", len(bound), "key", canonical.key[:12])

		prg, transformed, err := c.getOrCompile(ctx, canonical, cls.symbolic)
		if err != nil {
			return cty.NilVal, err
		}

		if pre := prg.BoundArguments(); len(pre) != 0 {
			return cty.NilVal, &InternalConsistencyError{
				Reason: fmt.Sprintf("cached program %q has %d pre-bound arguments; "+
					"it must be a pure function of its call-time arguments",
					prg.EntryPoint(), len(pre)),
			}
		}

		results, err := prg.Execute(ctx, c.opts.Queue, bound)
		if err != nil {
			return cty.NilVal, err
		}

		if err := mergeResults(frozen, results, transformed); err != nil {
			return cty.NilVal, err
		}
	}

	return reassemble(v, frozen)
}

// getOrCompile consults the chained transform and program caches under the
// context lock, populating them on miss. The transform step and the backend
// compiler each run at most once per canonical expression.
func (c *Context) getOrCompile(ctx context.Context, canonical *canonicalExpr,
	leaves map[string]expr.Node) (backend.Program, *expr.NamedSet, error) {

	logger := c.logger(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, entryOK := c.transformCache.Get(canonical.key)
	if entryOK {
		c.stats.TransformHits++
	} else {
		c.stats.TransformMisses++
		entryPoint := entryPointName(leaves)

		c.trace(entryPoint, "pre-transform")
		transformed := canonical.set
		if c.opts.TransformGraph != nil {
			var err error
			transformed, err = c.opts.TransformGraph(ctx, canonical.set)
			if err != nil {
				return nil, nil, fmt.Errorf("actx: graph transform failed: %w", err)
			}
		}
		c.trace(entryPoint, "post-transform")

		entry = transformEntry{set: transformed, entryPoint: entryPoint}
		c.transformCache.Add(canonical.key, entry)
		logger.Debug("Transform cache miss.", "entryPoint", entryPoint)
	}

	prg, prgOK := c.programCache.Get(canonical.key)
	if prgOK {
		c.stats.ProgramHits++
		logger.Debug("Program cache hit.", "entryPoint", entry.entryPoint)
		return prg, entry.set, nil
	}
	c.stats.ProgramMisses++

	c.trace(entry.entryPoint, "pre-compile")
	prg, err := c.opts.Compiler.Compile(ctx, entry.set, entry.entryPoint)
	if err != nil {
		return nil, nil, err
	}
	if c.opts.TransformProgram != nil {
		prg, err = c.opts.TransformProgram(ctx, prg)
		if err != nil {
			return nil, nil, fmt.Errorf("actx: program transform failed: %w", err)
		}
	}
	c.trace(entry.entryPoint, "post-compile")

	c.programCache.Add(canonical.key, prg)
	logger.Debug("Program cache miss, compiled.", "entryPoint", entry.entryPoint)
	return prg, entry.set, nil
}

// mergeResults folds freshly computed outputs into the concrete leaf map.
// The two key sets are disjoint by construction; a collision means the
// classifier and the executor disagree and the operation must abort. Tag and
// axis metadata from the transformed expression's output nodes is propagated
// onto the new buffers.
func mergeResults(frozen map[string]*buffer.Buffer, results map[string]*buffer.Buffer,
	transformed *expr.NamedSet) error {

	for key, b := range results {
		if _, dup := frozen[key]; dup {
			return &InternalConsistencyError{
				Reason: fmt.Sprintf("computed result key %q collides with an already-concrete leaf", key),
			}
		}
		node, err := transformed.Get(key)
		if err != nil {
			return &InternalConsistencyError{
				Reason: fmt.Sprintf("computed result key %q has no output in the transformed expression", key),
			}
		}
		tagged := b.WithTags(node.Tags())
		tagged, err = tagged.WithAxes(node.Axes())
		if err != nil {
			return err
		}
		frozen[key] = tagged.Detach()
	}
	return nil
}

// reassemble rebuilds the original container shape with every classified
// leaf replaced by its frozen buffer. Scalars pass through unchanged.
func reassemble(v cty.Value, frozen map[string]*buffer.Buffer) (cty.Value, error) {
	return container.KeyedMap(v, func(p cty.Path, leaf cty.Value) (cty.Value, error) {
		if b, ok := frozen[container.KeyString(p)]; ok {
			return container.Concrete(b), nil
		}
		return leaf, nil
	})
}

// entryPointName derives a diagnostic entry-point name from the PrefixNamed
// tags on the symbolic leaves: the longest common prefix shared by all of
// them, or a fixed default when the leaves share none. Naming is best-effort
// and affects diagnostics only, never correctness.
func entryPointName(leaves map[string]expr.Node) string {
	keys := make([]string, 0, len(leaves))
	for key := range leaves {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var prefixes []string
	for _, key := range keys {
		for _, p := range leaves[key].Tags().Prefixes() {
			prefixes = append(prefixes, p.Prefix)
		}
	}

	if prefix := commonPrefix(prefixes); prefix != "" {
		return "frozen_" + sanitizeIdent(prefix)
	}
	return "frozen_result"
}

// commonPrefix returns the longest prefix shared by all strings, or "" for
// an empty input.
func commonPrefix(strs []string) string {
	if len(strs) == 0 {
		return ""
	}
	prefix := strs[0]
	for _, s := range strs[1:] {
		for !strings.HasPrefix(s, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

func sanitizeIdent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
