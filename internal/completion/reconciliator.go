package completion

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultTimeout is the per-provider wait used when no timeout is configured.
const DefaultTimeout = time.Second

var (
	// ErrInvalidTimeout is returned when the configured timeout is negative.
	ErrInvalidTimeout = errors.New("completion timeout must not be negative")
	// ErrNilProvider is returned when the provider list contains nil.
	ErrNilProvider = errors.New("completion provider must not be nil")
)

// ReconciliatorConfig holds configuration for creating a Reconciliator.
type ReconciliatorConfig struct {
	// Context describes the editing surface. If nil, an empty context is used.
	Context *EditorContext

	// Providers in priority order. Earlier providers win de-duplication ties,
	// supply the replacement span of merged replies and decide continuous hints.
	Providers []Provider

	// Timeout bounds the wait for each individual provider.
	// Zero selects DefaultTimeout.
	Timeout time.Duration

	// Logger for debug output. If nil, a no-op logger is used.
	Logger *zap.Logger
}

// Reconciliator fans a completion request out to its providers and merges
// their replies. It is safe for concurrent use; overlapping Fetch calls run
// independently.
type Reconciliator struct {
	context   *EditorContext
	providers []Provider
	timeout   time.Duration
	logger    *zap.Logger
}

// NewReconciliator creates a new Reconciliator with the given configuration.
func NewReconciliator(cfg ReconciliatorConfig) (*Reconciliator, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeout, cfg.Timeout)
	}
	for i, p := range cfg.Providers {
		if p == nil {
			return nil, fmt.Errorf("%w: index %d", ErrNilProvider, i)
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ec := cfg.Context
	if ec == nil {
		ec = &EditorContext{}
	}

	return &Reconciliator{
		context:   ec,
		providers: slices.Clone(cfg.Providers),
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// WithContext returns a Reconciliator for another editing surface that shares
// this one's providers and timeout.
func (r *Reconciliator) WithContext(ec *EditorContext) *Reconciliator {
	if ec == nil {
		ec = &EditorContext{}
	}
	return &Reconciliator{
		context:   ec,
		providers: r.providers,
		timeout:   r.timeout,
		logger:    r.logger,
	}
}

// Providers returns the registered providers in priority order.
func (r *Reconciliator) Providers() []Provider {
	return slices.Clone(r.providers)
}

// Timeout returns the per-provider timeout.
func (r *Reconciliator) Timeout() time.Duration {
	return r.timeout
}

// Fetch asks every applicable provider for completions and merges the replies.
// It returns nil when no provider answered in time; a non-nil reply with no
// items means providers answered with nothing to suggest.
func (r *Reconciliator) Fetch(ctx context.Context, req Request) *Reply {
	applicable := lo.Filter(r.providers, func(p Provider, _ int) bool {
		return r.isApplicable(p)
	})
	if len(applicable) == 0 {
		r.logger.Debug("no applicable completion providers", zap.Int("offset", req.Offset))
		return nil
	}

	// One slot per provider keeps registration order without locking.
	replies := make([]*Reply, len(applicable))
	var wg sync.WaitGroup
	for i, p := range applicable {
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			replies[i] = r.fetchWithTimeout(ctx, p, req)
		}(i, p)
	}
	wg.Wait()

	settled := make([]providerReply, 0, len(applicable))
	for i, reply := range replies {
		if reply != nil {
			settled = append(settled, providerReply{provider: applicable[i], reply: reply})
		}
	}

	r.logger.Debug("completion fetch finished",
		zap.Int("applicable", len(applicable)),
		zap.Int("answered", len(settled)))

	switch len(settled) {
	case 0:
		return nil
	case 1:
		return r.single(settled[0])
	default:
		return r.merge(settled)
	}
}

// ShouldShowContinuousHint delegates to the first registered provider,
// whether or not it is currently applicable.
func (r *Reconciliator) ShouldShowContinuousHint(visible bool, change ChangeEvent) bool {
	if len(r.providers) == 0 {
		return false
	}
	return r.providers[0].ShouldShowContinuousHint(visible, change)
}

func (r *Reconciliator) isApplicable(p Provider) (applicable bool) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Warn("completion provider panicked in IsApplicable",
				zap.String("provider", p.Identifier()),
				zap.Any("panic", v))
			applicable = false
		}
	}()
	return p.IsApplicable(r.context)
}

type fetchOutcome struct {
	reply    *Reply
	err      error
	panicked bool
}

// fetchWithTimeout runs one provider and waits for it up to the timeout.
// The provider is not interrupted when the wait gives up; its late result
// lands in a buffered channel nobody reads.
func (r *Reconciliator) fetchWithTimeout(ctx context.Context, p Provider, req Request) *Reply {
	id := p.Identifier()
	started := time.Now()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- fetchOutcome{err: fmt.Errorf("panic: %v", v), panicked: true}
			}
		}()
		reply, err := p.Fetch(ctx, req, r.context)
		done <- fetchOutcome{reply: reply, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		elapsed := time.Since(started)
		switch {
		case out.panicked:
			r.logger.Warn("completion provider panicked",
				zap.String("provider", id), zap.Error(out.err))
			return nil
		case out.err != nil:
			r.logger.Debug("completion provider failed",
				zap.String("provider", id), zap.Duration("elapsed", elapsed), zap.Error(out.err))
			return nil
		case out.reply == nil:
			r.logger.Debug("completion provider returned no reply",
				zap.String("provider", id), zap.Duration("elapsed", elapsed))
			return nil
		}
		r.logger.Debug("completion provider replied",
			zap.String("provider", id),
			zap.Duration("elapsed", elapsed),
			zap.Int("items", len(out.reply.Items)))
		return out.reply
	case <-timer.C:
		r.logger.Debug("completion provider timed out",
			zap.String("provider", id), zap.Duration("timeout", r.timeout))
		return nil
	case <-ctx.Done():
		r.logger.Debug("completion request cancelled",
			zap.String("provider", id), zap.Error(ctx.Err()))
		return nil
	}
}
