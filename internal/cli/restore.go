package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avignat/multimac/internal/engine"
	"github.com/avignat/multimac/internal/units"
)

var (
	restoreDisk    string
	restoreFormat  string
	restoreName    string
	restoreDryRun  bool
	restoreYes     bool
	restoreNoInput bool
)

// restoreCmd undoes a multi-boot layout: the whole disk becomes one volume.
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Erase a disk back to a single blank volume",
	Long: `Restore an install disk to everyday use.

The disk is erased and recreated as a single volume (ExFAT named USB_DISK
unless told otherwise). Like create, this is destructive and asks for a
typed YES without --yes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine("")
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		disk, err := selectDisk(ctx, cmd, eng, restoreDisk, restoreNoInput)
		if err != nil {
			if errors.Is(err, errSelectionCancelled) {
				PrintInfo("Cancelled.")
				return nil
			}
			return err
		}

		req := engine.RestoreRequest{
			Disk:   disk.Device,
			Format: restoreFormat,
			Name:   restoreName,
		}

		if restoreDryRun {
			req.DryRun = true
			res, err := eng.Restore(ctx, req)
			if err != nil {
				return err
			}
			if jsonOutput {
				return outputJSON(res)
			}
			PrintWarning(fmt.Sprintf("Dry run: %s would become one %s volume %q. Nothing was touched.",
				res.Disk, res.Format, res.Name))
			return nil
		}

		if err := requireRoot(); err != nil {
			return err
		}

		if !restoreYes {
			PrintWarning(fmt.Sprintf("About to ERASE %s (%s, %s) back to a single volume",
				disk.Device, disk.Name, units.FormatSize(disk.SizeBytes)))
			fmt.Print("  Type 'YES' to confirm: ")
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil || strings.TrimSpace(line) != "YES" {
				PrintInfo("Cancelled.")
				return nil
			}
		}

		req.Confirmed = true
		res, err := eng.Restore(ctx, req)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res)
		}
		PrintSuccess(fmt.Sprintf("Restored %s to a single %s volume %q.", res.Disk, res.Format, res.Name))
		return nil
	},
}

func init() {
	restoreCmd.Flags().StringVar(&restoreDisk, "disk", "", "Target disk, e.g. /dev/disk2 or disk2 (skips the picker)")
	restoreCmd.Flags().StringVar(&restoreFormat, "format", "", "Filesystem for the fresh volume (default ExFAT)")
	restoreCmd.Flags().StringVar(&restoreName, "name", "", "Label for the fresh volume (default USB_DISK)")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Report what would be erased without touching the disk")
	restoreCmd.Flags().BoolVar(&restoreYes, "yes", false, "Skip the typed YES confirmation")
	restoreCmd.Flags().BoolVar(&restoreNoInput, "no-input", false, "Never open the full-screen picker; use the numbered prompt")
}
