package expr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// nodeRecord is the flattened, order-independent description of one node.
// Children refer to earlier indices in the record stream, so structurally
// identical subgraphs collapse onto the same record regardless of sharing.
type nodeRecord struct {
	Kind     string
	Op       string
	Name     string
	Serial   uint64
	Value    float64
	Shape    []int
	DType    int
	Tags     string
	Axes     []string
	Children []int
}

type outputRecord struct {
	Name string
	Root int
}

type digestStream struct {
	Records []nodeRecord
	Outputs []outputRecord
}

type digester struct {
	records []nodeRecord
	index   map[string]int
	byNode  map[Node]int
}

// Digest computes the structural content hash of a named expression set. It
// is a pure function of structure: operator identity, names, shapes, dtypes,
// tags and child wiring. Embedded DataWrapper literals contribute their
// creation serial, so an uncanonicalized set containing literal data never
// collides with another; canonicalized sets contain no wrappers and therefore
// digest identically whenever they are structurally identical.
func Digest(s *NamedSet) (string, error) {
	d := &digester{index: make(map[string]int), byNode: make(map[Node]int)}

	outputs := make([]outputRecord, 0, len(s.names))
	for _, name := range s.names {
		root, err := d.visit(s.nodes[name])
		if err != nil {
			return "", err
		}
		outputs = append(outputs, outputRecord{Name: name, Root: root})
	}

	raw, err := msgpack.Marshal(digestStream{Records: d.records, Outputs: outputs})
	if err != nil {
		return "", fmt.Errorf("expr: encoding digest stream: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (d *digester) visit(n Node) (int, error) {
	if idx, ok := d.byNode[n]; ok {
		return idx, nil
	}

	kids := n.children()
	children := make([]int, len(kids))
	for i, kid := range kids {
		idx, err := d.visit(kid)
		if err != nil {
			return 0, err
		}
		children[i] = idx
	}

	rec := nodeRecord{
		Shape:    n.Shape(),
		DType:    int(n.DType()),
		Tags:     n.Tags().Canonical(),
		Children: children,
	}
	axes := n.Axes()
	rec.Axes = make([]string, len(axes))
	for i, a := range axes {
		rec.Axes[i] = a.Canonical()
	}

	switch node := n.(type) {
	case *Placeholder:
		rec.Kind = "placeholder"
		rec.Name = node.Name()
	case *DataWrapper:
		rec.Kind = "data"
		rec.Serial = node.Serial()
	case *Fill:
		rec.Kind = "fill"
		rec.Value = node.Value()
	case *Unary:
		rec.Kind = "unary"
		rec.Op = node.Op().String()
	case *Binary:
		rec.Kind = "binary"
		rec.Op = node.Op().String()
	default:
		return 0, fmt.Errorf("expr: cannot digest node of type %T", n)
	}

	key, err := msgpack.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("expr: encoding node record: %w", err)
	}
	idx, ok := d.index[string(key)]
	if !ok {
		idx = len(d.records)
		d.records = append(d.records, rec)
		d.index[string(key)] = idx
	}
	d.byNode[n] = idx
	return idx, nil
}
