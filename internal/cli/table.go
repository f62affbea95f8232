package cli

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/MimeLyc/batch-sub-translator/internal/batch"
	"github.com/MimeLyc/batch-sub-translator/internal/subtitle"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellText = 48

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func cueTable(cues []subtitle.Cue, limit int) string {
	if limit <= 0 || limit > len(cues) {
		limit = len(cues)
	}
	rows := make([][]string, 0, limit)
	for i, c := range cues[:limit] {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.StartTime,
			c.EndTime,
			oneLine(c.Text),
		})
	}
	return renderTable(
		[]string{"#", "Start", "End", "Text"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func planTable(batches []batch.Batch) string {
	rows := make([][]string, 0, len(batches))
	for _, b := range batches {
		rows = append(rows, []string{
			b.Key.String(),
			idRange(b.IDs()),
			strconv.Itoa(len(b.Items)),
		})
	}
	return renderTable(
		[]string{"Batch", "Items", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

// ledgerTable lists failed batches with their members still in error.
func ledgerTable(views []batch.View, items []subtitle.Item) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		reason := ""
		if len(v.ErrorIDs) > 0 {
			if id := v.ErrorIDs[0]; id >= 1 && id <= len(items) {
				reason = oneLine(items[id-1].Error)
			}
		}
		rows = append(rows, []string{
			v.Key.String(),
			idRange(idsOf(v.Items)),
			strconv.Itoa(len(v.ErrorIDs)),
			reason,
		})
	}
	return renderTable(
		[]string{"Batch", "Items", "Errors", "First error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func idsOf(items []subtitle.Item) []int {
	ids := make([]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func idRange(ids []int) string {
	switch len(ids) {
	case 0:
		return "-"
	case 1:
		return "#" + strconv.Itoa(ids[0])
	}
	return "#" + strconv.Itoa(ids[0]) + "-#" + strconv.Itoa(ids[len(ids)-1])
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxCellText {
		return string(r[:maxCellText-1]) + "…"
	}
	return s
}
