// Package frame lays out the network diagram and rasterises one frame of it.
// The gif and mjpeg encoders are built on top of it.
package frame

import (
	"fmt"

	"github.com/gorgonia/nnviz/network"
)

// geometry of the diagram, in pixels
const (
	XGap   = 180 // between columns
	YGap   = 110 // between nodes of a column
	Radius = 18
	Pad    = 60
)

// Node is one unit of the diagram. Col 0 is the input column and the last column is the output node.
type Node struct {
	ID   string
	Col  int
	Idx  int
	X, Y float32
}

// Edge connects a node to a node of the next column. Layer is the index of the source column,
// which is also the index of the weight that the edge carries.
type Edge struct {
	ID     string
	Layer  int
	X1, Y1 float32
	X2, Y2 float32
}

// Geometry is the layout of the whole diagram.
type Geometry struct {
	Nodes   []Node
	Edges   []Edge
	ByLayer [][]Edge // edges grouped by Layer
	W, H    int
}

type column struct {
	id    string
	count int
}

// Layout computes the positions of every node and edge. Columns are centred vertically on the tallest one.
func Layout(inputCount int, layers []network.Layer) Geometry {
	cols := make([]column, 0, len(layers)+2)
	cols = append(cols, column{"in", inputCount})
	for _, l := range layers {
		cols = append(cols, column{l.ID, l.Nodes})
	}
	cols = append(cols, column{"out", 1})

	maxN := 1
	for _, c := range cols {
		if c.count > maxN {
			maxN = c.count
		}
	}
	g := Geometry{
		W:       2*Pad + (len(cols)-1)*XGap,
		H:       2*Pad + (maxN-1)*YGap,
		ByLayer: make([][]Edge, len(cols)-1),
	}

	starts := make([]int, len(cols))
	for ci, c := range cols {
		starts[ci] = len(g.Nodes)
		x := float32(Pad + ci*XGap)
		colH := float32((c.count - 1) * YGap)
		for i := 0; i < c.count; i++ {
			y := float32(Pad) + float32(g.H-2*Pad)/2 - colH/2 + float32(i*YGap)
			g.Nodes = append(g.Nodes, Node{
				ID:  fmt.Sprintf("%s-%d", c.id, i),
				Col: ci,
				Idx: i,
				X:   x,
				Y:   y,
			})
		}
	}

	for ci := 0; ci < len(cols)-1; ci++ {
		for a := 0; a < cols[ci].count; a++ {
			src := g.Nodes[starts[ci]+a]
			for b := 0; b < cols[ci+1].count; b++ {
				dst := g.Nodes[starts[ci+1]+b]
				e := Edge{
					ID:    src.ID + "-" + dst.ID,
					Layer: ci,
					X1:    src.X, Y1: src.Y,
					X2: dst.X, Y2: dst.Y,
				}
				g.Edges = append(g.Edges, e)
				g.ByLayer[ci] = append(g.ByLayer[ci], e)
			}
		}
	}
	return g
}
