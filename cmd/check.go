package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/version-radar/internal/radar"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Runs one scrape cycle and prints its result",
		Args:  cobra.NoArgs,
		RunE:  runCheckCommand,
	}
}

func runCheckCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if err := appInstance.Config().ValidateScrape(); err != nil {
		return fmt.Errorf("invalid scrape config: %w", err)
	}

	res := appInstance.Runner().RunScrapeCycle(cmd.Context())

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if res.State == radar.StateFailed {
		return fmt.Errorf("scrape cycle failed while %s: %s", res.FailedAt, res.Error)
	}
	return nil
}
