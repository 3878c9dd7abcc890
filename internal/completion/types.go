// Package completion reconciles completion suggestions from several providers
// into a single ordered, de-duplicated reply for the line editor.
package completion

import (
	"context"
	"strings"
)

// TriggerKind describes what caused a completion request.
type TriggerKind string

const (
	// TriggerInvoked is an explicit request, e.g. the user pressed Tab.
	TriggerInvoked TriggerKind = "invoked"
	// TriggerCharacter is a request caused by typing a trigger character.
	TriggerCharacter TriggerKind = "character"
	// TriggerContinuous is a request made while continuous hints are enabled.
	TriggerContinuous TriggerKind = "continuous"
)

// Trigger carries optional metadata about why a request was made.
type Trigger struct {
	Kind      TriggerKind
	Character string
}

// Request is a single completion request for the text being edited.
type Request struct {
	// Offset is the cursor position within Text, in bytes.
	Offset int
	// Text is the full text being completed.
	Text string
	// Trigger is nil when the caller has nothing to say about the cause.
	Trigger *Trigger
}

// ResolveFunc lazily fills in the details of an item, e.g. its documentation.
type ResolveFunc func(ctx context.Context) (Item, error)

// Item is a single completion suggestion.
type Item struct {
	// Label is the text displayed to the user.
	Label string
	// InsertText is the text inserted on accept. Empty means Label.
	InsertText string
	// Type is a provider-specific kind such as "command" or "file".
	Type string
	// Detail is a short annotation shown next to the label.
	Detail string
	// Documentation is longer help text, possibly filled in by Resolve.
	Documentation string
	// Metadata holds any other provider-specific data.
	Metadata map[string]string

	// Source is the identifier of the provider the item came from.
	// Set by the Reconciliator.
	Source string
	// Resolve resolves the item against its originating provider.
	// Set by the Reconciliator; nil when the provider cannot resolve.
	Resolve ResolveFunc
}

// Text returns the text that would be inserted for the item.
func (i Item) Text() string {
	if i.InsertText != "" {
		return i.InsertText
	}
	return i.Label
}

// dedupeKey is the identity used to collapse duplicate suggestions.
// Flanking whitespace is ignored so "import " and "import" compare equal.
func (i Item) dedupeKey() string {
	return strings.TrimSpace(i.Text())
}

// Reply is the replacement span and the ranked suggestions for it.
type Reply struct {
	Start int
	End   int
	Items []Item
}

// ChangeEvent describes the edit that prompted a continuous hint decision.
type ChangeEvent struct {
	Offset   int
	Inserted string
	Removed  string
}

// EditorContext describes the active editing surface. The Reconciliator never
// looks inside it; it is handed to every provider unchanged.
type EditorContext struct {
	WorkingDir string
	Language   string
	SessionID  string
	Env        map[string]string
}
