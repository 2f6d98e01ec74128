// Package resolver discovers a reachable browser endpoint.
//
// Candidates are tried in a fixed priority order: the most likely
// pre-existing user session first, generic defaults last, and optionally a
// freshly launched browser at the very end. The first candidate that
// attaches wins; failures are logged and the next candidate is tried.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/pbs/pkg/config"
	"github.com/entrhq/pbs/pkg/engine"
	"github.com/entrhq/pbs/pkg/logging"
	"github.com/entrhq/pbs/pkg/types"
)

// Resolver turns an ordered candidate list into an engine handle.
type Resolver struct {
	candidates []Candidate
	logger     *logging.Logger
}

// New creates a resolver over candidates, tried in the given order.
func New(candidates []Candidate, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Resolver{
		candidates: candidates,
		logger:     logger,
	}
}

// FromConfig builds the candidate list from endpoint configuration.
// The launch candidate is appended only when launch_fallback is enabled.
func FromConfig(cfg config.EndpointConfig, connector engine.Connector, logger *logging.Logger) *Resolver {
	connectOpts := engine.ConnectOptions{Timeout: cfg.ConnectTimeout}

	candidates := make([]Candidate, 0, len(cfg.Candidates)+1)
	for _, c := range cfg.Candidates {
		host := c.Hostname()
		if c.Auth {
			candidates = append(candidates, &RelayCandidate{
				Host:      host,
				Port:      c.Port,
				Token:     cfg.AuthToken,
				Connector: connector,
				Options:   connectOpts,
			})
			continue
		}
		candidates = append(candidates, &DirectCandidate{
			Host:      host,
			Port:      c.Port,
			Connector: connector,
			Options:   connectOpts,
		})
	}

	if cfg.LaunchFallback {
		candidates = append(candidates, &LaunchCandidate{
			Connector: connector,
			Options: engine.LaunchOptions{
				Headless: cfg.Headless,
				Args:     cfg.LaunchArgs,
			},
		})
	}

	return New(candidates, logger)
}

// Candidates returns the candidate list in probe order.
func (r *Resolver) Candidates() []Candidate {
	return append([]Candidate(nil), r.candidates...)
}

// Resolve attaches to the first reachable candidate. It fails with a
// *types.ConnectionError only after every candidate has been tried.
func (r *Resolver) Resolve(ctx context.Context) (engine.Browser, error) {
	var errs []error

	for _, c := range r.candidates {
		if err := ctx.Err(); err != nil {
			return nil, &types.ConnectionError{Attempts: len(errs), Err: errors.Join(append(errs, err)...)}
		}

		r.logger.Infof("Trying %s...", c)
		browser, err := c.Attach(ctx)
		if err != nil {
			r.logger.Warnf("%s failed: %v", c, err)
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
			continue
		}

		r.logger.Infof("Connected via %s", c)
		return browser, nil
	}

	if len(errs) == 0 {
		return nil, &types.ConnectionError{Err: errors.New("no endpoint candidates configured")}
	}
	return nil, &types.ConnectionError{Attempts: len(errs), Err: errors.Join(errs...)}
}
