package completers

import (
	"context"
	"fmt"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/shell"
	"github.com/samber/lo"
)

// SpecID identifies the SpecProvider.
const SpecID = "specs"

// SpecProvider completes command arguments from bash completion specs
// registered with `complete -W` or `complete -F`.
type SpecProvider struct {
	shell *shell.Shell
}

// NewSpecProvider creates a SpecProvider reading specs from sh.
func NewSpecProvider(sh *shell.Shell) *SpecProvider {
	return &SpecProvider{shell: sh}
}

func (p *SpecProvider) Identifier() string {
	return SpecID
}

func (p *SpecProvider) IsApplicable(ec *completion.EditorContext) bool {
	return isShellContext(ec)
}

func (p *SpecProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	lc := newLineContext(req.Text, req.Offset)
	reply := &completion.Reply{Start: lc.start, End: lc.end, Items: []completion.Item{}}

	if lc.isFirstWord() {
		return reply, nil
	}

	command := lc.words[0]
	spec, ok := p.shell.Specs().GetSpec(command)
	if !ok {
		return reply, nil
	}

	words := append(lc.words[:len(lc.words):len(lc.words)], lc.word)
	candidates, err := p.shell.ExecuteSpec(ctx, spec, words)
	if err != nil {
		return nil, fmt.Errorf("completion spec for %s: %w", command, err)
	}

	reply.Items = lo.Map(lo.Uniq(lo.Compact(candidates)), func(c string, _ int) completion.Item {
		return completion.Item{
			Label:    c,
			Type:     "argument",
			Detail:   command,
			Metadata: map[string]string{"spec": string(spec.Type)},
		}
	})
	return reply, nil
}

func (p *SpecProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return false
}
