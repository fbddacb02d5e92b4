package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avignat/multimac/internal/journal"
	"github.com/avignat/multimac/internal/media"
	"github.com/avignat/multimac/internal/planner"
)

// Apply executes a plan: unmount, repartition, then one createinstallmedia
// run per entry. A failing entry does not stop the entries after it; only
// losing the disk itself abandons the run. The per-entry outcome is in the
// returned Report.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	plan := req.Plan
	if len(plan.Entries) == 0 {
		return nil, fmt.Errorf("plan has no entries")
	}
	if !req.DryRun && !req.Confirmed {
		return nil, ErrNotConfirmed
	}

	report := Report{
		RunID:     uuid.NewString(),
		Disk:      plan.Disk.Device,
		DiskName:  plan.Disk.Name,
		Strategy:  string(plan.Strategy),
		StartedAt: e.clock.Now(),
	}
	for _, entry := range plan.Entries {
		report.Entries = append(report.Entries, EntryReport{
			Volume:    entry.Volume,
			Installer: entry.Installer.DisplayName(),
			SizeBytes: entry.SizeBytes,
			Status:    EntryPlanned,
		})
	}

	if req.DryRun {
		report.Outcome = OutcomeDryRun
		report.FinishedAt = e.clock.Now()
		return &ApplyResult{Report: report}, nil
	}

	if err := e.checkDiskMatchesPlan(ctx, plan); err != nil {
		return nil, err
	}

	e.log.Info("partitioning disk",
		"run", report.RunID,
		"disk", plan.Disk.Device,
		"entries", len(plan.Entries))

	if err := e.disks.UnmountDisk(ctx, plan.Disk.Device); err != nil {
		return nil, err
	}
	if err := e.disks.PartitionDisk(ctx, plan.Disk.Device, plan.Scheme(), plan.Specs()); err != nil {
		return nil, err
	}

	e.writeEntries(ctx, plan, req.OnProgress, &report)

	report.Outcome = outcomeOf(report.Entries)
	report.FinishedAt = e.clock.Now()

	e.record(journal.Record{
		RunID:    report.RunID,
		Action:   journal.ActionCreate,
		Disk:     report.Disk,
		DiskName: report.DiskName,
		Entries:  len(report.Entries),
		Outcome:  journalOutcome(report.Outcome),
		Detail:   failureDetail(report.Entries),
	})

	return &ApplyResult{Report: report}, nil
}

// writeEntries runs createinstallmedia for each planned partition in order.
func (e *Engine) writeEntries(ctx context.Context, plan planner.Plan, onProgress ProgressFunc, report *Report) {
	for i, entry := range plan.Entries {
		if err := ctx.Err(); err != nil {
			e.skipRemaining(report, i, "run cancelled")
			return
		}

		var cb media.ProgressFunc
		if onProgress != nil {
			idx := i
			inst := entry.Installer.DisplayName()
			vol := entry.Volume
			cb = func(p media.Progress) {
				onProgress(ApplyProgress{
					EntryIndex: idx,
					EntryCount: len(plan.Entries),
					Installer:  inst,
					Volume:     vol,
					Progress:   p,
				})
			}
		}

		res, err := e.writer.Write(ctx, media.WriteRequest{
			Installer: entry.Installer,
			Volume:    entry.Volume,
			Disk:      plan.Disk,
		}, cb)
		if err != nil {
			report.Entries[i].Status = EntryFailed
			report.Entries[i].Error = err.Error()
			e.log.Error("entry failed",
				"volume", entry.Volume,
				"installer", entry.Installer.DisplayName(),
				"error", err)

			if ctx.Err() != nil {
				e.skipRemaining(report, i+1, "run cancelled")
				return
			}
			if !e.diskAlive(ctx, plan.Disk.Device) {
				e.skipRemaining(report, i+1, ErrDiskGone.Error())
				return
			}
			continue
		}

		report.Entries[i].Status = EntryOK
		report.Entries[i].MountPoint = res.MountPoint
		report.Entries[i].RenamedTo = res.RenamedTo
		report.Entries[i].Duration = res.Duration
	}
}

func (e *Engine) skipRemaining(report *Report, from int, reason string) {
	for i := from; i < len(report.Entries); i++ {
		if report.Entries[i].Status == EntryPlanned {
			report.Entries[i].Status = EntrySkipped
			report.Entries[i].Error = reason
		}
	}
}

// checkDiskMatchesPlan re-reads the disk and refuses to continue when it no
// longer matches what the user confirmed.
func (e *Engine) checkDiskMatchesPlan(ctx context.Context, plan planner.Plan) error {
	live, err := e.disks.Info(ctx, plan.Disk.Device)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", ErrDiskGone, plan.Disk.Device)
	}
	if live.Identifier != plan.Disk.Identifier ||
		live.SizeBytes != plan.Disk.SizeBytes ||
		live.Name != plan.Disk.Name {
		return fmt.Errorf("%w: %s is now %s (%d bytes)",
			ErrDiskChanged, plan.Disk.Device, live.Name, live.SizeBytes)
	}
	if !live.IsCandidate() {
		return fmt.Errorf("%w: %s is no longer an eligible external disk",
			ErrDiskChanged, plan.Disk.Device)
	}
	return nil
}

func (e *Engine) diskAlive(ctx context.Context, device string) bool {
	_, err := e.disks.Info(ctx, device)
	return err == nil
}

func outcomeOf(entries []EntryReport) string {
	ok := 0
	for _, entry := range entries {
		if entry.Status == EntryOK {
			ok++
		}
	}
	switch {
	case ok == len(entries):
		return OutcomeOK
	case ok > 0:
		return OutcomePartial
	default:
		return OutcomeFailed
	}
}

func journalOutcome(outcome string) string {
	switch outcome {
	case OutcomeOK:
		return journal.OutcomeOK
	case OutcomePartial:
		return journal.OutcomePartial
	default:
		return journal.OutcomeFailed
	}
}

// failureDetail names the first failed volume for the journal line.
func failureDetail(entries []EntryReport) string {
	for _, entry := range entries {
		if entry.Status == EntryFailed {
			return fmt.Sprintf("%s: %s", entry.Volume, entry.Error)
		}
	}
	return ""
}
