package completion

import (
	"context"
)

// providerReply pairs a successful reply with the provider that produced it.
type providerReply struct {
	provider Provider
	reply    *Reply
}

// single returns a lone reply as is, apart from decorating its items.
func (r *Reconciliator) single(pr providerReply) *Reply {
	items := make([]Item, len(pr.reply.Items))
	for i, item := range pr.reply.Items {
		items[i] = r.decorate(pr.provider, item)
	}
	return &Reply{
		Start: pr.reply.Start,
		End:   pr.reply.End,
		Items: items,
	}
}

// merge unions the items of several replies. The first item seen for a
// de-duplication key wins, walking providers and then items in order.
// Start and End are taken from the first reply and never recomputed, even if
// none of its items survive.
func (r *Reconciliator) merge(replies []providerReply) *Reply {
	first := replies[0].reply
	merged := &Reply{
		Start: first.Start,
		End:   first.End,
		Items: make([]Item, 0, len(first.Items)),
	}

	seen := make(map[string]struct{})
	for _, pr := range replies {
		for _, item := range pr.reply.Items {
			key := item.dedupeKey()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged.Items = append(merged.Items, r.decorate(pr.provider, item))
		}
	}
	return merged
}

// decorate tags an item with its provider and, when the provider can resolve
// items, a Resolve func bound to it.
func (r *Reconciliator) decorate(p Provider, item Item) Item {
	item.Source = p.Identifier()
	item.Resolve = nil

	resolver, ok := p.(Resolver)
	if !ok {
		return item
	}

	original := item
	ec := r.context
	item.Resolve = func(ctx context.Context) (Item, error) {
		resolved, err := resolver.Resolve(ctx, original, ec)
		if err != nil {
			return original, err
		}
		resolved.Source = original.Source
		resolved.Resolve = nil
		return resolved, nil
	}
	return item
}
