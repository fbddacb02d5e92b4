package engine

import (
	"context"
	"fmt"
)

// Disks lists the external disks eligible as media targets. An empty list is
// not an error; commands that need a target report ErrNoExternalDisks.
func (e *Engine) Disks(ctx context.Context, req DisksRequest) (*DisksResult, error) {
	disks, err := e.disks.ListExternal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list external disks: %w", err)
	}

	e.log.Debug("disk scan finished", "candidates", len(disks))
	return &DisksResult{Disks: disks}, nil
}
