package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/pin/internal/app"
)

func (c *CLI) newLockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock [REF]",
		Short: "Create or update the lock file of a manifest",
		Long: `Resolve every input of the manifest at REF (default ".") and write the
resulting lock file next to it. Inputs already pinned by the lock file are kept
unless they are named by --update-input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := lockOptions(cmd, args)
			if err != nil {
				return err
			}
			return c.app.Lock(cmd.Context(), opts)
		},
	}
	addLockFlags(cmd)
	return cmd
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update [REF]",
		Short: "Recreate the lock file from scratch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := lockOptions(cmd, args)
			if err != nil {
				return err
			}
			return c.app.Update(cmd.Context(), opts)
		},
	}
	addLockFlags(cmd)
	return cmd
}

func addLockFlags(cmd *cobra.Command) {
	cmd.Flags().StringArray("update-input", nil, "Refetch the input at `PATH` and everything below it")
	cmd.Flags().StringArray("override-input", nil, "Replace the input at PATH with REF, given as `PATH=REF`")
	cmd.Flags().Bool("recreate-lock-file", false, "Ignore the existing lock file")
	cmd.Flags().Bool("no-update-lock-file", false, "Fail if the lock file would change")
	cmd.Flags().Bool("no-write-lock-file", false, "Do not write the lock file")
	cmd.Flags().Bool("commit-lock-file", false, "Commit the lock file to its git repository")
	cmd.Flags().Bool("no-registries", false, "Do not resolve indirect references")
	cmd.Flags().Bool("pure", false, "Refuse to lock mutable inputs")
}

func lockOptions(cmd *cobra.Command, args []string) (app.LockOptions, error) {
	var opts app.LockOptions
	if len(args) > 0 {
		opts.Ref = args[0]
	}

	flags := cmd.Flags()
	if updates, _ := flags.GetStringArray("update-input"); len(updates) > 0 {
		opts.UpdateInputs = updates
	}
	opts.RecreateLockFile, _ = flags.GetBool("recreate-lock-file")
	opts.NoUpdateLockFile, _ = flags.GetBool("no-update-lock-file")
	opts.NoWriteLockFile, _ = flags.GetBool("no-write-lock-file")
	opts.CommitLockFile, _ = flags.GetBool("commit-lock-file")
	opts.NoRegistries, _ = flags.GetBool("no-registries")
	opts.Pure, _ = flags.GetBool("pure")

	overrides, _ := flags.GetStringArray("override-input")
	for _, s := range overrides {
		o, err := app.ParseOverride(s)
		if err != nil {
			return app.LockOptions{}, err
		}
		opts.OverrideInputs = append(opts.OverrideInputs, o)
	}
	return opts, nil
}
