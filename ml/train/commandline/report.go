package commandline

import (
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/train/optimizers"
	"github.com/muesli/termenv"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
)

// VariablesTable returns a table with one row per variable: its name, shape and the
// statistics of its current value.
func VariablesTable(variables []*graph.Node) *lgtable.Table {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers("Variable", "Shape", "L2 Norm", "Min", "Max").
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row < 0:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col >= 2 {
				s = s.Align(lipgloss.Right)
			}
			return
		})
	for _, v := range variables {
		var sumSquares float64
		minValue, maxValue := math.Inf(1), math.Inf(-1)
		for _, x := range v.Value().Flat() {
			sumSquares += x * x
			minValue = min(minValue, x)
			maxValue = max(maxValue, x)
		}
		table.Row(v.VariableName(), v.Shape().String(),
			fmt.Sprintf("%.4g", math.Sqrt(sumSquares)), fmt.Sprintf("%.4g", minValue), fmt.Sprintf("%.4g", maxValue))
	}
	return table
}

// SummaryTable returns a table with the number of iterations run, the first and last losses and
// the current value of the optimization metrics.
func SummaryTable(o *optimizers.Optimization) *lgtable.Table {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	table.Row("Iterations", humanize.Comma(int64(o.Iterations())))
	table.Row("Variables", humanize.Comma(int64(len(o.Variables()))))
	if losses := o.Losses(); len(losses) > 0 {
		table.Row("Initial loss", fmt.Sprintf("%.6g", losses[0]))
		table.Row("Final loss", fmt.Sprintf("%.6g", losses[len(losses)-1]))
	}
	for _, m := range o.Metrics() {
		table.Row(m.Name(), m.PrettyPrint(m.Value()))
	}
	return table
}

// Report writes the summary of the optimization followed by the table of its variables to w.
// Colors are used only if w is a terminal that supports them.
func Report(w io.Writer, o *optimizers.Optimization) error {
	output := termenv.NewOutput(w)
	renderer := lipgloss.NewRenderer(output)
	renderer.SetColorProfile(output.ColorProfile())
	style := renderer.NewStyle().PaddingLeft(2)
	_, err := fmt.Fprintf(output, "%s\n%s\n",
		style.Render(SummaryTable(o).String()),
		style.Render(VariablesTable(o.Variables()).String()))
	return err
}
