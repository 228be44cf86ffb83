package expr

import (
	"fmt"

	"github.com/alexfikl/arraycontext/tag"
)

// UnaryOp enumerates element-wise single-argument operators.
type UnaryOp int

const (
	Neg UnaryOp = iota
	Abs
)

// String returns the operator name.
func (op UnaryOp) String() string {
	switch op {
	case Neg:
		return "neg"
	case Abs:
		return "abs"
	default:
		return fmt.Sprintf("unary(%d)", int(op))
	}
}

// BinaryOp enumerates element-wise two-argument operators.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Max
)

// String returns the operator name.
func (op BinaryOp) String() string {
	switch op {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	case Div:
		return "div"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("binary(%d)", int(op))
	}
}

// Unary is an element-wise single-argument operation.
type Unary struct {
	common
	op UnaryOp
	x  Node
}

// NewUnary applies op element-wise to x.
func NewUnary(op UnaryOp, x Node) *Unary {
	return &Unary{common: newCommon(x.Shape(), x.DType()), op: op, x: x}
}

// Op returns the operator.
func (u *Unary) Op() UnaryOp { return u.op }

// Arg returns the operand.
func (u *Unary) Arg() Node { return u.x }

// Tagged implements Node.
func (u *Unary) Tagged(tags tag.Set) Node {
	out := *u
	out.common = u.common.tagged(tags)
	return &out
}

// TaggedAxis implements Node.
func (u *Unary) TaggedAxis(axis int, tags tag.Set) (Node, error) {
	c, err := u.common.taggedAxis(axis, tags)
	if err != nil {
		return nil, err
	}
	out := *u
	out.common = c
	return &out, nil
}

func (u *Unary) children() []Node { return []Node{u.x} }
func (u *Unary) isNode()          {}

// Binary is an element-wise two-argument operation. Either operand may be a
// scalar-shaped (rank 0) node, which broadcasts against the other.
type Binary struct {
	common
	op   BinaryOp
	x, y Node
}

func sameShape(a, b []int) bool {
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

// NewBinary applies op element-wise to x and y.
func NewBinary(op BinaryOp, x, y Node) (*Binary, error) {
	xs, ys := x.Shape(), y.Shape()
	var shape []int
	switch {
	case sameShape(xs, ys):
		shape = xs
	case len(xs) == 0:
		shape = ys
	case len(ys) == 0:
		shape = xs
	default:
		return nil, fmt.Errorf("expr: %s operands have incompatible shapes %v and %v",
			op, xs, ys)
	}
	return &Binary{common: newCommon(shape, x.DType()), op: op, x: x, y: y}, nil
}

// Op returns the operator.
func (b *Binary) Op() BinaryOp { return b.op }

// Left returns the first operand.
func (b *Binary) Left() Node { return b.x }

// Right returns the second operand.
func (b *Binary) Right() Node { return b.y }

// Tagged implements Node.
func (b *Binary) Tagged(tags tag.Set) Node {
	out := *b
	out.common = b.common.tagged(tags)
	return &out
}

// TaggedAxis implements Node.
func (b *Binary) TaggedAxis(axis int, tags tag.Set) (Node, error) {
	c, err := b.common.taggedAxis(axis, tags)
	if err != nil {
		return nil, err
	}
	out := *b
	out.common = c
	return &out, nil
}

func (b *Binary) children() []Node { return []Node{b.x, b.y} }
func (b *Binary) isNode()          {}
