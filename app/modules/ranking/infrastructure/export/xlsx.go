package rankingexport

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	globalSheet  = "Global"
	maxSheetName = 31
)

var (
	globalHeader = []any{"Rank", "Participant", "Name", "Points"}
	mapHeader    = []any{"Rank", "Participant", "Name", "Time", "Time (ms)", "Points"}
)

// WriteXLSX writes a workbook with a Global sheet followed by one sheet per map.
func WriteXLSX(w io.Writer, st Standings) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", globalSheet); err != nil {
		return fmt.Errorf("rename default sheet: %w", err)
	}

	rows := make([][]any, 0, len(st.Global.Rows)+1)
	rows = append(rows, globalHeader)
	for _, r := range st.Global.Rows {
		rows = append(rows, []any{r.Rank, string(r.ParticipantID), r.DisplayName, r.Points})
	}
	if err := writeRows(f, globalSheet, rows); err != nil {
		return err
	}

	used := map[string]bool{strings.ToLower(globalSheet): true}
	for _, board := range st.Maps {
		name := uniqueSheetName(string(board.MapID), used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %q: %w", name, err)
		}
		rows := make([][]any, 0, len(board.Rows)+1)
		rows = append(rows, mapHeader)
		for _, r := range board.Rows {
			rows = append(rows, []any{r.Rank, string(r.ParticipantID), r.DisplayName, r.Time, r.TimeMs, r.Points})
		}
		if err := writeRows(f, name, rows); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// uniqueSheetName maps a map id onto a legal, unused sheet name.
func uniqueSheetName(id string, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, id)
	base = strings.Trim(base, "'")
	if base == "" {
		base = "map"
	}
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)] || strings.EqualFold(name, globalSheet); n++ {
		suffix := fmt.Sprintf("~%d", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
