package cli

import (
	"github.com/spf13/cobra"

	"github.com/avignat/multimac/internal/engine"
)

var (
	installersAppDirs []string
	installersCatalog string
)

// installersCmd lists discovered installer bundles without touching a disk.
var installersCmd = &cobra.Command{
	Use:   "installers",
	Short: "List discovered macOS installer applications",
	Long: `Scan for "Install macOS *.app" bundles and report what create would use.

Bundles smaller than a full installer (App Store stub downloads) and bundles
missing their createinstallmedia tool are listed but flagged as unusable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(installersCatalog)
		if err != nil {
			return err
		}

		res, err := eng.Discover(cmd.Context(), engine.DiscoverRequest{AppDirs: installersAppDirs})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res.Installers)
		}

		printInstallers(res.Installers)
		return nil
	},
}

func init() {
	installersCmd.Flags().StringArrayVar(&installersAppDirs, "app-dir", nil, "Directory to scan for installer bundles (repeatable; default /Applications)")
	installersCmd.Flags().StringVar(&installersCatalog, "catalog", "", "YAML release catalog replacing the built-in table")
}
