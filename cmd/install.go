package cmd

import (
	"github.com/spf13/cobra"

	"github.com/liuxd6825/quizsmoke/errext"
	"github.com/liuxd6825/quizsmoke/errext/exitcodes"
)

func getCmdInstall(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install the Playwright driver and its Chromium build",
		Long: `Install the Playwright driver and the Chromium build it drives.

The cdp and selenium backends use the browser found on the system instead.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			gs.logger.Info("Installing the Playwright driver and Chromium")
			if err := gs.installPlaywright(gs.flags.verbose); err != nil {
				return errext.WithExitCodeIfNone(err, exitcodes.CannotProvision)
			}
			gs.logger.Info("Installed")
			return nil
		},
	}
}
