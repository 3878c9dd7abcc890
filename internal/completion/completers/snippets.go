package completers

import (
	"context"
	"sort"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/sahilm/fuzzy"
)

// SnippetID identifies the SnippetProvider.
const SnippetID = "snippets"

// Snippet is a named piece of command text.
type Snippet struct {
	Name      string
	Expansion string
}

type snippetSource []Snippet

func (s snippetSource) String(i int) string { return s[i].Name }

func (s snippetSource) Len() int { return len(s) }

// SnippetProvider expands user defined snippets by name. Typing part of a
// snippet name offers its expansion in place of the word.
type SnippetProvider struct {
	snippets snippetSource
}

// NewSnippetProvider creates a SnippetProvider from a name to expansion map.
func NewSnippetProvider(snippets map[string]string) *SnippetProvider {
	source := make(snippetSource, 0, len(snippets))
	for name, expansion := range snippets {
		source = append(source, Snippet{Name: name, Expansion: expansion})
	}
	sort.Slice(source, func(i, j int) bool {
		return source[i].Name < source[j].Name
	})
	return &SnippetProvider{snippets: source}
}

func (p *SnippetProvider) Identifier() string {
	return SnippetID
}

func (p *SnippetProvider) IsApplicable(ec *completion.EditorContext) bool {
	return len(p.snippets) > 0 && isShellContext(ec)
}

func (p *SnippetProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	lc := newLineContext(req.Text, req.Offset)
	reply := &completion.Reply{Start: lc.start, End: lc.end, Items: []completion.Item{}}

	if lc.word == "" {
		return reply, nil
	}

	for _, match := range fuzzy.FindFrom(lc.word, p.snippets) {
		snippet := p.snippets[match.Index]
		reply.Items = append(reply.Items, completion.Item{
			Label:      snippet.Name,
			InsertText: snippet.Expansion,
			Type:       "snippet",
			Detail:     snippet.Expansion,
		})
	}
	return reply, nil
}

func (p *SnippetProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return false
}
