package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const emptyCell = "-"

// renderTable draws rows under headers. Missing or blank cells render as "-".
func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, columns, ""))
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns, emptyCell))
	}

	configs := make([]table.ColumnConfig, columns)
	for i := range configs {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(cells []string, columns int, blank string) table.Row {
	row := make(table.Row, columns)
	for i := range row {
		value := blank
		if i < len(cells) && strings.TrimSpace(cells[i]) != "" {
			value = cells[i]
		}
		row[i] = value
	}
	return row
}
