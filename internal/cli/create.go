package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/engine"
	"github.com/avignat/multimac/internal/media"
	"github.com/avignat/multimac/internal/planner"
	"github.com/avignat/multimac/internal/units"
)

var (
	createAppDirs  []string
	createDisk     string
	createStrategy string
	createCatalog  string
	createDryRun   bool
	createYes      bool
	createNoInput  bool
)

// createCmd runs the whole flow: discover installers, pick a disk, plan the
// layout, confirm, erase, and write one installer per partition.
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Erase a disk and write one bootable installer per partition",
	Long: `Create a multi-boot install disk.

The target disk is erased and repartitioned with one volume per discovered
installer, then each installer's createinstallmedia fills its volume. The
disk must be external and ejectable; internal disks are never offered.

Without --yes the command asks for a typed YES immediately before erasing.
With --dry-run it stops after printing the plan and touches nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := planner.ParseStrategy(createStrategy); err != nil {
			return err
		}

		eng, err := newEngine(createCatalog)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		// Discover installers first so an empty scan ends the run before
		// any disk is listed or prompted for.
		disc, err := eng.Discover(ctx, engine.DiscoverRequest{AppDirs: createAppDirs})
		if err != nil {
			return err
		}
		if !jsonOutput {
			printInstallers(disc.Installers)
		}
		if len(disc.Usable()) == 0 {
			return fmt.Errorf("%w (searched %s)", engine.ErrNoInstallers, searchedDirs(createAppDirs))
		}

		disk, err := selectDisk(ctx, cmd, eng, createDisk, createNoInput)
		if err != nil {
			if errors.Is(err, errSelectionCancelled) {
				PrintInfo("Cancelled.")
				return nil
			}
			return err
		}

		planRes, err := eng.Plan(ctx, engine.PlanRequest{
			AppDirs:  createAppDirs,
			Disk:     disk.Device,
			Strategy: createStrategy,
		})
		if err != nil {
			return err
		}
		plan := planRes.Plan
		if !jsonOutput {
			printPlan(plan)
		}

		if createDryRun {
			res, err := eng.Apply(ctx, engine.ApplyRequest{Plan: plan, DryRun: true})
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(res.Report)
			}
			PrintWarning("Dry run: nothing was written. Run without --dry-run to erase and write.")
			return nil
		}

		if err := requireRoot(); err != nil {
			return err
		}

		if !createYes {
			ok, err := confirmErase(cmd, plan.Disk, len(plan.Entries))
			if err != nil {
				return err
			}
			if !ok {
				PrintInfo("Cancelled.")
				return nil
			}
		}

		var onProgress engine.ProgressFunc
		if !jsonOutput {
			printer := newProgressPrinter()
			onProgress = printer.observe
		}

		res, err := eng.Apply(ctx, engine.ApplyRequest{
			Plan:       plan,
			Confirmed:  true,
			OnProgress: onProgress,
		})
		if err != nil {
			return err
		}
		report := res.Report

		if jsonOutput {
			if err := outputJSON(report); err != nil {
				return err
			}
		} else {
			printSummary(report)
		}

		if !report.Succeeded() {
			failed := 0
			for _, entry := range report.Entries {
				if entry.Status != engine.EntryOK {
					failed++
				}
			}
			return fmt.Errorf("%s not written", PrintCount(failed, "volume was", "volumes were"))
		}
		return nil
	},
}

func init() {
	createCmd.Flags().StringArrayVar(&createAppDirs, "app-dir", nil, "Directory to scan for installer bundles (repeatable; default /Applications)")
	createCmd.Flags().StringVar(&createDisk, "disk", "", "Target disk, e.g. /dev/disk2 or disk2 (skips the picker)")
	createCmd.Flags().StringVar(&createStrategy, "strategy", "", "Partition sizing: equal or measured (default equal)")
	createCmd.Flags().StringVar(&createCatalog, "catalog", "", "YAML release catalog replacing the built-in table")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "Print the plan without touching the disk")
	createCmd.Flags().BoolVar(&createYes, "yes", false, "Skip the typed YES confirmation")
	createCmd.Flags().BoolVar(&createNoInput, "no-input", false, "Never open the full-screen picker; use the numbered prompt")
}

// selectDisk resolves the target: the --disk flag when given, otherwise an
// interactive pick from the candidates.
func selectDisk(ctx context.Context, cmd *cobra.Command, eng *engine.Engine, explicit string, noInput bool) (diskutil.Disk, error) {
	res, err := eng.Disks(ctx, engine.DisksRequest{})
	if err != nil {
		return diskutil.Disk{}, err
	}
	if len(res.Disks) == 0 {
		return diskutil.Disk{}, engine.ErrNoExternalDisks
	}

	if explicit != "" {
		for _, d := range res.Disks {
			if d.Device == explicit || d.Identifier == explicit {
				return d, nil
			}
		}
		return diskutil.Disk{}, fmt.Errorf("%w: %s", engine.ErrDiskNotFound, explicit)
	}

	return pickDisk(cmd.InOrStdin(), res.Disks, noInput)
}

// confirmErase asks for a typed YES, the same guard the underlying diskutil
// invocation deserves. Anything else declines.
func confirmErase(cmd *cobra.Command, disk diskutil.Disk, partitions int) (bool, error) {
	PrintWarning(fmt.Sprintf("About to ERASE %s (%s, %s)", disk.Device, disk.Name, units.FormatSize(disk.SizeBytes)))
	PrintInfo(fmt.Sprintf("  All data on the disk will be lost. %s will be created.",
		PrintCount(partitions, "partition", "partitions")))
	fmt.Print("  Type 'YES' to confirm: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(line) == "YES", nil
}

// searchedDirs names the scanned directories for error messages.
func searchedDirs(dirs []string) string {
	if len(dirs) == 0 {
		return "/Applications"
	}
	return strings.Join(dirs, ", ")
}

// printInstallers lists every matched bundle, flagging the unusable ones.
func printInstallers(installers []discovery.Installer) {
	PrintSection("macOS Installers")
	if len(installers) == 0 {
		PrintEmptyState("No installer applications found.")
		return
	}

	var rows [][]string
	for _, inst := range installers {
		status := "ready"
		switch {
		case !inst.HasTool:
			status = "no createinstallmedia"
		case inst.Incomplete():
			status = fmt.Sprintf("incomplete (%s)", units.FormatSize(inst.SizeBytes))
		}
		rows = append(rows, []string{
			inst.DisplayName(),
			inst.Version,
			units.FormatSize(inst.SizeBytes),
			units.FormatSize(inst.RequiredBytes()),
			status,
		})
	}
	PrintTable([]string{"INSTALLER", "VERSION", "SIZE", "REQUIRED", "STATUS"}, rows)

	for _, inst := range installers {
		if !inst.Usable() {
			PrintWarning(fmt.Sprintf("Skipping %s: likely a stub download, re-download the full installer", inst.BundleName))
		}
	}
}

// printPlan shows the layout Apply would create.
func printPlan(plan planner.Plan) {
	PrintSection("Partition Plan")
	PrintLabelValue("Disk", fmt.Sprintf("%s (%s, %s)", plan.Disk.Device, plan.Disk.Name, units.FormatSize(plan.Disk.SizeBytes)))
	PrintLabelValue("Scheme", plan.Scheme())
	PrintLabelValue("Strategy", string(plan.Strategy))
	fmt.Println()

	var rows [][]string
	for _, entry := range plan.Entries {
		size := units.FormatSize(entry.SizeBytes)
		if entry.TakesRemainder {
			size += " (rest of disk)"
		}
		rows = append(rows, []string{entry.Volume, entry.Installer.DisplayName(), size})
	}
	PrintTable([]string{"VOLUME", "INSTALLER", "SIZE"}, rows)
}

// printSummary reports the per-volume outcome after a run.
func printSummary(report engine.Report) {
	PrintSection("Summary")
	for _, entry := range report.Entries {
		switch entry.Status {
		case engine.EntryOK:
			target := entry.MountPoint
			if entry.RenamedTo != "" {
				target = fmt.Sprintf("%s (renamed to %q)", entry.MountPoint, entry.RenamedTo)
			}
			PrintSuccess(fmt.Sprintf("%s: %s in %s", entry.Volume, target, entry.Duration.Round(time.Second)))
		case engine.EntryFailed:
			PrintError(fmt.Sprintf("%s: %s", entry.Volume, entry.Error))
		case engine.EntrySkipped:
			PrintWarning(fmt.Sprintf("%s: skipped (%s)", entry.Volume, entry.Error))
		}
	}
	fmt.Println()

	switch report.Outcome {
	case engine.OutcomeOK:
		PrintSuccess(fmt.Sprintf("All %s written to %s.",
			PrintCount(len(report.Entries), "volume", "volumes"), report.Disk))
	case engine.OutcomePartial:
		PrintWarning("Some volumes were not written; see above.")
	default:
		PrintError("No volumes were written.")
	}
}

// progressPrinter renders Apply progress as one line per phase change plus
// coarse percent ticks, so piped output stays readable.
type progressPrinter struct {
	entry       int
	phase       media.Phase
	lastPercent float64
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{entry: -1}
}

func (p *progressPrinter) observe(ev engine.ApplyProgress) {
	if ev.EntryIndex != p.entry {
		p.entry = ev.EntryIndex
		p.phase = ""
		p.lastPercent = -1
		PrintInfo(fmt.Sprintf("[%d/%d] %s → %s", ev.EntryIndex+1, ev.EntryCount,
			ev.Installer, ev.Volume))
	}
	if ev.Progress.Phase != p.phase {
		p.phase = ev.Progress.Phase
		p.lastPercent = -1
		PrintInfo(fmt.Sprintf("  %s", p.phase))
	}
	if pct := ev.Progress.Percent; pct >= 0 && pct >= p.lastPercent+10 {
		p.lastPercent = pct
		PrintInfo(fmt.Sprintf("  %s %.0f%%", p.phase, pct))
	}
}
