package completers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atinylittleshell/gcomp/internal/completion"
	"github.com/atinylittleshell/gcomp/internal/history"
	"github.com/dustin/go-humanize"
)

// HistoryID identifies the HistoryProvider.
const HistoryID = "history"

// DefaultHistoryLimit is the number of history lines offered when
// HistoryProviderConfig.Limit is zero.
const DefaultHistoryLimit = 10

// CommandHistory looks up previously run command lines.
type CommandHistory interface {
	GetDistinctCommandsByPrefix(prefix string, limit int) ([]history.CommandUsage, error)
}

// HistoryProviderConfig holds configuration for creating a HistoryProvider.
type HistoryProviderConfig struct {
	History CommandHistory

	// Limit caps the number of items. Zero means DefaultHistoryLimit.
	Limit int

	// Now returns the current time for relative timestamps. Defaults to time.Now.
	Now func() time.Time
}

// HistoryProvider offers previously run command lines that start with what
// has been typed so far. Each item completes the rest of the line.
type HistoryProvider struct {
	history CommandHistory
	limit   int
	now     func() time.Time
}

// NewHistoryProvider creates a new HistoryProvider.
func NewHistoryProvider(cfg HistoryProviderConfig) *HistoryProvider {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &HistoryProvider{
		history: cfg.History,
		limit:   limit,
		now:     now,
	}
}

func (p *HistoryProvider) Identifier() string {
	return HistoryID
}

func (p *HistoryProvider) IsApplicable(ec *completion.EditorContext) bool {
	return p.history != nil && isShellContext(ec)
}

func (p *HistoryProvider) Fetch(ctx context.Context, req completion.Request, ec *completion.EditorContext) (*completion.Reply, error) {
	start, end, input, ok := lineCompletion(req.Text, req.Offset)
	reply := &completion.Reply{Start: start, End: end, Items: []completion.Item{}}

	if !ok || strings.TrimSpace(input) == "" {
		return reply, nil
	}

	// One extra row covers the line matching the input exactly, which is skipped.
	usages, err := p.history.GetDistinctCommandsByPrefix(input, p.limit+1)
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}

	now := p.now()
	for _, usage := range usages {
		if usage.Command == input {
			continue
		}
		if len(reply.Items) >= p.limit {
			break
		}

		item := completion.Item{
			Label:      usage.Command,
			InsertText: usage.Command[start:],
			Type:       "history",
			Detail:     usageDetail(usage, now),
			Metadata: map[string]string{
				"uses": strconv.Itoa(usage.Uses),
			},
		}
		if usage.ExitCode.Valid {
			item.Metadata["exit_code"] = strconv.Itoa(int(usage.ExitCode.Int32))
		}
		reply.Items = append(reply.Items, item)
	}
	return reply, nil
}

func (p *HistoryProvider) ShouldShowContinuousHint(visible bool, change completion.ChangeEvent) bool {
	return change.Inserted != ""
}

// usageDetail renders e.g. "used 3 times, 5 minutes ago".
func usageDetail(usage history.CommandUsage, now time.Time) string {
	when := humanize.RelTime(usage.LastUsed, now, "ago", "from now")
	if usage.Uses <= 1 {
		return "used " + when
	}
	return fmt.Sprintf("used %s times, %s", humanize.Comma(int64(usage.Uses)), when)
}
