package bvh

import (
	"bytes"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Stats collected while building a BVH.
type Stats struct {
	Primitives int
	Nodes      int
	Leafs      int
	MaxDepth   int

	// Number of internal nodes per split strategy.
	SAHSplits      int
	MidpointSplits int
	MedianSplits   int

	Workers   int
	BuildTime time.Duration
}

// Build a tabular representation of the build statistics.
func (s Stats) Table() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stat", "Value"})
	table.Append([]string{"Primitives", fmt.Sprint(s.Primitives)})
	table.Append([]string{"Nodes", fmt.Sprint(s.Nodes)})
	table.Append([]string{"Leafs", fmt.Sprint(s.Leafs)})
	table.Append([]string{"Max depth", fmt.Sprint(s.MaxDepth)})
	table.Append([]string{"SAH splits", fmt.Sprint(s.SAHSplits)})
	table.Append([]string{"Midpoint splits", fmt.Sprint(s.MidpointSplits)})
	table.Append([]string{"Median splits", fmt.Sprint(s.MedianSplits)})
	table.Append([]string{"Workers", fmt.Sprint(s.Workers)})
	table.SetFooter([]string{"Build time", fmt.Sprintf("%d ms", s.BuildTime.Nanoseconds()/1e6)})
	table.Render()
	return buf.String()
}
