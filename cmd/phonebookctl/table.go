package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var columns = []string{"Surname", "Name", "Phone number", "Email"}

// parseRecords splits a query response into one row per contact, in
// column order. Absent fields are empty.
func parseRecords(text string) [][]string {
	var rows [][]string
	for _, block := range strings.Split(strings.TrimRight(text, "\n"), "\n\n") {
		if block == "" {
			continue
		}
		row := make([]string, len(columns))
		for _, line := range strings.Split(block, "\n") {
			label, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			for i, col := range columns {
				if label == col {
					row[i] = strings.TrimLeft(value, "\t")
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderTable(text string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(columns...).
		Rows(parseRecords(text)...)
	return t.Render() + "\n"
}
