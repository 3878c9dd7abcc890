package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReply() *completion.Reply {
	return &completion.Reply{
		Start: 4,
		End:   6,
		Items: []completion.Item{
			{Label: "checkout", Type: "argument", Detail: "git", Source: "specs"},
			{Label: "git cherry-pick abc", InsertText: "cherry-pick abc", Type: "history", Detail: "used 2 times, 3 minutes ago", Source: "history"},
		},
	}
}

func TestCursor(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		pos      int
		expected int
	}{
		{"default is end of line", "git ch", -1, 6},
		{"inside the line", "git ch", 3, 3},
		{"past the end", "git", 10, 3},
		{"empty line", "", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cursor(tt.line, tt.pos))
		})
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, sampleReply()))

	var decoded jsonReply
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 4, decoded.Start)
	assert.Equal(t, 6, decoded.End)
	require.Len(t, decoded.Items, 2)
	assert.Equal(t, "checkout", decoded.Items[0].InsertText)
	assert.Equal(t, "cherry-pick abc", decoded.Items[1].InsertText)
	assert.Equal(t, "history", decoded.Items[1].Source)
}

func TestWriteJSONNilReply(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, nil))
	assert.Equal(t, "null", strings.TrimSpace(buf.String()))
}

func TestWritePlain(t *testing.T) {
	var buf bytes.Buffer
	writePlain(&buf, sampleReply())
	assert.Equal(t, "checkout\targument\tspecs\ncherry-pick abc\thistory\thistory\n", buf.String())

	buf.Reset()
	writePlain(&buf, nil)
	assert.Empty(t, buf.String())
}

func TestWriteColumns(t *testing.T) {
	var buf bytes.Buffer
	writeColumns(&buf, sampleReply(), 80)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "2 completions for [4, 6)")
	assert.Contains(t, lines[1], "checkout")
	assert.Contains(t, lines[1], "specs")
	assert.Contains(t, lines[2], "git cherry-pick abc")
	assert.Contains(t, lines[2], "used 2 times")
}

func TestWriteColumnsTruncatesDetail(t *testing.T) {
	reply := &completion.Reply{Items: []completion.Item{
		{Label: "x", Detail: strings.Repeat("long detail ", 20), Source: "snippets"},
	}}

	var buf bytes.Buffer
	writeColumns(&buf, reply, 40)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "…")
	assert.Contains(t, lines[1], "snippets")
}

func TestWriteColumnsEmpty(t *testing.T) {
	var buf bytes.Buffer
	writeColumns(&buf, nil, 80)
	assert.Contains(t, buf.String(), "no completions")
}

func TestWriteHistory(t *testing.T) {
	entries := []history.HistoryEntry{
		{ID: 7, Command: "make test", CreatedAt: time.Now().Add(-3 * time.Minute)},
		{ID: 3, Command: "git status", CreatedAt: time.Now().Add(-2 * time.Hour)},
	}

	var buf bytes.Buffer
	writeHistory(&buf, entries)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "7\t3 minutes ago\tmake test", lines[0])
	assert.Equal(t, "3\t2 hours ago\tgit status", lines[1])
}
