package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/history"
	"github.com/atinylittleshell/gcomp/internal/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/rivo/uniseg"
	"github.com/samber/lo"
)

const maxLabelWidth = 40

type jsonItem struct {
	Label         string            `json:"label"`
	InsertText    string            `json:"insertText"`
	Type          string            `json:"type,omitempty"`
	Detail        string            `json:"detail,omitempty"`
	Documentation string            `json:"documentation,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Source        string            `json:"source"`
}

type jsonReply struct {
	Start int        `json:"start"`
	End   int        `json:"end"`
	Items []jsonItem `json:"items"`
}

// writeJSON prints the reply as a JSON object, or null when there is none.
func writeJSON(w io.Writer, reply *completion.Reply) error {
	var out *jsonReply
	if reply != nil {
		out = &jsonReply{
			Start: reply.Start,
			End:   reply.End,
			Items: lo.Map(reply.Items, func(item completion.Item, _ int) jsonItem {
				return jsonItem{
					Label:         item.Label,
					InsertText:    item.Text(),
					Type:          item.Type,
					Detail:        item.Detail,
					Documentation: item.Documentation,
					Metadata:      item.Metadata,
					Source:        item.Source,
				}
			}),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writePlain prints one tab-separated line per item: insert text, type, source.
func writePlain(w io.Writer, reply *completion.Reply) {
	if reply == nil {
		return
	}
	for _, item := range reply.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", item.Text(), item.Type, item.Source)
	}
}

// writeColumns prints aligned label, detail and source columns fitted to width.
func writeColumns(w io.Writer, reply *completion.Reply, width int) {
	if reply == nil || len(reply.Items) == 0 {
		fmt.Fprintln(w, styles.DETAIL("no completions"))
		return
	}

	labelWidth := 0
	sourceWidth := 0
	for _, item := range reply.Items {
		labelWidth = max(labelWidth, uniseg.StringWidth(item.Label))
		sourceWidth = max(sourceWidth, uniseg.StringWidth(item.Source))
	}
	labelWidth = min(labelWidth, maxLabelWidth)
	detailWidth := max(width-labelWidth-sourceWidth-4, 0)

	header := lipgloss.NewStyle().Bold(true).Render(
		fmt.Sprintf("%d completions for [%d, %d)", len(reply.Items), reply.Start, reply.End))
	fmt.Fprintln(w, header)

	labelStyle := lipgloss.NewStyle().Width(labelWidth + 2)
	detailStyle := lipgloss.NewStyle().Width(detailWidth + 2)
	sourceStyle := lipgloss.NewStyle().Faint(true)

	for _, item := range reply.Items {
		label := truncate.StringWithTail(item.Label, uint(labelWidth), "…")
		detail := strings.ReplaceAll(item.Detail, "\n", " ")
		detail = truncate.StringWithTail(detail, uint(detailWidth), "…")

		row := lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(styles.Label(label, item.Type)),
			detailStyle.Render(styles.DETAIL(detail)),
			sourceStyle.Render(item.Source),
		)
		fmt.Fprintln(w, row)

		if item.Documentation != "" {
			fmt.Fprintln(w, lipgloss.NewStyle().PaddingLeft(2).Render(styles.DETAIL(item.Documentation)))
		}
	}
}

// writeHistory prints one line per entry: id, age and command.
func writeHistory(w io.Writer, entries []history.HistoryEntry) {
	for _, entry := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\n", entry.ID, humanize.Time(entry.CreatedAt), entry.Command)
	}
}
