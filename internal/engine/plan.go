package engine

import (
	"context"
	"fmt"

	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/planner"
)

// Plan discovers installers, validates the target disk, and lays out one
// partition per usable installer. The plan touches nothing; Apply executes
// it after the user confirms.
func (e *Engine) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	strategy, err := planner.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	if req.Disk == "" {
		return nil, fmt.Errorf("no target disk specified")
	}

	installers, err := e.finder.Scan(ctx, req.AppDirs...)
	if err != nil {
		return nil, fmt.Errorf("failed to discover installers: %w", err)
	}

	var usable, skipped []discovery.Installer
	for _, inst := range installers {
		if inst.Usable() {
			usable = append(usable, inst)
		} else {
			skipped = append(skipped, inst)
		}
	}
	if len(usable) == 0 {
		if len(skipped) > 0 {
			return nil, fmt.Errorf("%w (%d bundles matched but none is complete)", ErrNoInstallers, len(skipped))
		}
		return nil, ErrNoInstallers
	}

	candidates, err := e.disks.ListExternal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list external disks: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoExternalDisks
	}

	disk, err := resolveDisk(candidates, req.Disk)
	if err != nil {
		return nil, err
	}

	plan, err := planner.Build(disk, usable, strategy)
	if err != nil {
		return nil, err
	}

	e.log.Info("plan ready",
		"disk", disk.Device,
		"strategy", string(strategy),
		"entries", len(plan.Entries))
	return &PlanResult{Plan: plan, Installers: installers, Skipped: skipped}, nil
}
