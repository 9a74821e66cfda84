package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/pin/internal/app"
)

func (c *CLI) newMetadataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata [REF]",
		Short: "Show what a manifest resolves and locks to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := lockOptions(cmd, args)
			if err != nil {
				return err
			}
			jsonOutput, _ := cmd.Flags().GetBool("json")
			return c.app.Metadata(cmd.Context(), app.MetadataOptions{
				LockOptions: opts,
				JSON:        jsonOutput,
			})
		},
	}
	addLockFlags(cmd)
	return cmd
}
