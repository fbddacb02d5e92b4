package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avignat/multimac/internal/journal"
)

// Defaults for a restored disk: one ExFAT volume usable on both macOS and
// everything else.
const (
	DefaultRestoreFormat = "ExFAT"
	DefaultRestoreName   = "USB_DISK"
)

// Restore erases the disk back to a single blank volume. Only candidate
// external disks can be restored; internal disks are never eligible.
func (e *Engine) Restore(ctx context.Context, req RestoreRequest) (*RestoreResult, error) {
	if req.Disk == "" {
		return nil, fmt.Errorf("no target disk specified")
	}
	if req.Format == "" {
		req.Format = DefaultRestoreFormat
	}
	if req.Name == "" {
		req.Name = DefaultRestoreName
	}
	if !req.DryRun && !req.Confirmed {
		return nil, ErrNotConfirmed
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

	result := &RestoreResult{
		RunID:  uuid.NewString(),
		Disk:   disk.Device,
		Format: req.Format,
		Name:   req.Name,
		DryRun: req.DryRun,
	}
	if req.DryRun {
		return result, nil
	}

	e.log.Info("restoring disk",
		"run", result.RunID,
		"disk", disk.Device,
		"format", req.Format,
		"name", req.Name)

	if err := e.disks.UnmountDisk(ctx, disk.Device); err != nil {
		return nil, err
	}
	if err := e.disks.EraseDisk(ctx, disk.Device, req.Format, req.Name); err != nil {
		e.record(journal.Record{
			RunID:   result.RunID,
			Action:  journal.ActionRestore,
			Disk:    disk.Device,
			Outcome: journal.OutcomeFailed,
			Detail:  err.Error(),
		})
		return nil, err
	}

	e.record(journal.Record{
		RunID:    result.RunID,
		Action:   journal.ActionRestore,
		Disk:     disk.Device,
		DiskName: disk.Name,
		Outcome:  journal.OutcomeOK,
	})
	return result, nil
}
