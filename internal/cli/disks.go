package cli

import (
	"github.com/spf13/cobra"

	"github.com/avignat/multimac/internal/engine"
	"github.com/avignat/multimac/internal/units"
)

// disksCmd lists the disks create would offer.
var disksCmd = &cobra.Command{
	Use:   "disks",
	Short: "List candidate external disks",
	Long: `List attached disks eligible as install media targets.

Only whole, ejectable, non-internal disks with a recognized partition scheme
are shown; anything listed here is exactly what 'multimac create' offers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine("")
		if err != nil {
			return err
		}

		res, err := eng.Disks(cmd.Context(), engine.DisksRequest{})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res.Disks)
		}

		PrintSection("External Disks")
		if len(res.Disks) == 0 {
			PrintEmptyState("No candidate external disks attached.")
			return nil
		}

		var rows [][]string
		for _, d := range res.Disks {
			rows = append(rows, []string{
				d.Device,
				d.Name,
				units.FormatSize(d.SizeBytes),
				d.BusProtocol,
				d.Scheme,
			})
		}
		PrintTable([]string{"DEVICE", "NAME", "SIZE", "BUS", "SCHEME"}, rows)
		return nil
	},
}
