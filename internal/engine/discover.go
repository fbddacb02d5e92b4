package engine

import (
	"context"
	"fmt"
)

// Discover scans application directories for installer bundles. The result
// includes unusable bundles (stubs, missing tools) so callers can explain
// why an installer was passed over.
func (e *Engine) Discover(ctx context.Context, req DiscoverRequest) (*DiscoverResult, error) {
	installers, err := e.finder.Scan(ctx, req.AppDirs...)
	if err != nil {
		return nil, fmt.Errorf("failed to discover installers: %w", err)
	}

	e.log.Debug("discovery finished", "found", len(installers))
	return &DiscoverResult{Installers: installers}, nil
}
