package output

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/yt-insights/ytreport/internal/models"
)

const maxTitleWidth = 48

// Table provides table rendering utilities
type Table struct {
	table  *tablewriter.Table
	header []string
	rows   [][]string
	quiet  bool
}

// NewTable creates a borderless table writing to w.
func NewTable(w io.Writer, headers []string, quiet bool) *Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	return &Table{table: table, header: headers, quiet: quiet}
}

// AddRow adds a row to the table
func (t *Table) AddRow(row []string) {
	t.rows = append(t.rows, row)
}

// Render outputs the table
func (t *Table) Render() error {
	if t.quiet {
		return nil
	}
	t.table.Header(t.header)
	if err := t.table.Bulk(t.rows); err != nil {
		return err
	}
	return t.table.Render()
}

// RankingTable prints the first limit entries of a view ranking.
func (p *Printer) RankingTable(ranking []models.RankedVideo, limit int) error {
	if limit > 0 && len(ranking) > limit {
		ranking = ranking[:limit]
	}
	t := NewTable(p.out, []string{"#", "Views", "Likes", "Published", "Title"}, p.quiet)
	for _, v := range ranking {
		t.AddRow([]string{
			strconv.Itoa(v.Rank),
			humanize.Comma(v.Views),
			humanize.Comma(v.Likes),
			v.PublishedAt.UTC().Format("2006-01-02"),
			truncate(v.Title, maxTitleWidth),
		})
	}
	return t.Render()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
