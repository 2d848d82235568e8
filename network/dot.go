package network

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

type column struct {
	name  string
	count int
}

func (s *Store) columns() []column {
	cols := make([]column, 0, len(s.layers)+2)
	cols = append(cols, column{"in", s.inputCount})
	for _, l := range s.layers {
		cols = append(cols, column{l.ID, l.Nodes})
	}
	return append(cols, column{"out", 1})
}

// ToDot renders the topology as a Graphviz digraph. There is one node per unit, and edges
// between adjacent columns carry the weight of the layer they feed.
func (s *Store) ToDot(name string) (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(name); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.SetDir(true); err != nil {
		return "", errors.WithStack(err)
	}
	if err := g.AddAttr(name, "rankdir", "LR"); err != nil {
		return "", errors.WithStack(err)
	}

	cols := s.columns()
	for ci, c := range cols {
		for i := 0; i < c.count; i++ {
			var label string
			switch {
			case ci == 0:
				label = fmt.Sprintf("%q", fmt.Sprintf("x%d=%.2f", i+1, s.params.Inputs[i]))
			default:
				label = fmt.Sprintf("%q", fmt.Sprintf("%s b=%.2f", c.name, s.params.Biases[ci-1]))
			}
			attrs := map[string]string{
				"shape": "circle",
				"label": label,
			}
			if err := g.AddNode(name, nodeName(c.name, i), attrs); err != nil {
				return "", errors.WithStack(err)
			}
		}
	}

	for ci := 0; ci < len(cols)-1; ci++ {
		from, to := cols[ci], cols[ci+1]
		w := fmt.Sprintf("%q", fmt.Sprintf("%.2f", s.params.Weights[ci]))
		for a := 0; a < from.count; a++ {
			for b := 0; b < to.count; b++ {
				if err := g.AddEdge(nodeName(from.name, a), nodeName(to.name, b), true, map[string]string{"label": w}); err != nil {
					return "", errors.WithStack(err)
				}
			}
		}
	}
	return g.String(), nil
}

func nodeName(col string, i int) string { return fmt.Sprintf("%s_%d", col, i) }
