package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns are right aligned.
type column struct {
	title   string
	numeric bool
	// maxWidth wraps long cells such as error messages; zero leaves them.
	maxWidth int
}

// renderTable draws rows under cols. A non-nil footer is rendered below a
// separator, which the sync summary uses for totals.
func renderTable(cols []column, rows [][]string, footer []string) string {
	if len(cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	cells := func(values []string) table.Row {
		row := make(table.Row, len(cols))
		for i := range cols {
			if i < len(values) {
				row[i] = values[i]
			} else {
				row[i] = ""
			}
		}
		return row
	}

	header := make([]string, len(cols))
	configs := make([]table.ColumnConfig, len(cols))
	for i, c := range cols {
		header[i] = c.title
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignFooter: align,
			WidthMax:    c.maxWidth,
		}
	}
	tw.AppendHeader(cells(header))
	for _, r := range rows {
		tw.AppendRow(cells(r))
	}
	if footer != nil {
		tw.AppendFooter(cells(footer))
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
