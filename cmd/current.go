package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/version-radar/internal/radar"
)

func newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Prints the stored version record as JSON",
		Args:  cobra.NoArgs,
		RunE:  runCurrentCommand,
	}
}

func runCurrentCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	name := appInstance.Config().Software.Name

	rec, err := radar.Lookup(cmd.Context(), appInstance.Store(), name)
	if errors.Is(err, radar.ErrNotFound) {
		return fmt.Errorf("no version recorded for %q", name)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
