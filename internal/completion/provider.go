package completion

import (
	"context"
)

// Provider is a pluggable source of completion suggestions.
// Implementations are supplied by the application; the Reconciliator only
// calls them.
type Provider interface {
	// Identifier returns a unique name for the provider, used for logging
	// and to tag the items it contributes.
	Identifier() string

	// IsApplicable reports whether the provider should be asked for
	// completions in the given editing context.
	IsApplicable(ec *EditorContext) bool

	// Fetch returns completions for the request. A returned error drops the
	// provider's contribution for this request only.
	Fetch(ctx context.Context, req Request, ec *EditorContext) (*Reply, error)

	// ShouldShowContinuousHint reports whether suggestions should be shown
	// automatically after the given edit.
	ShouldShowContinuousHint(visible bool, change ChangeEvent) bool
}

// Resolver is implemented by providers that can fill in item details lazily.
type Resolver interface {
	Resolve(ctx context.Context, item Item, ec *EditorContext) (Item, error)
}
