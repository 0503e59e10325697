package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	linkSize   int64
	linkDryRun bool
)

var linkCmd = &cobra.Command{
	Use:   "link <parent-dir> <name> <target>",
	Short: "Add a named link to a directory and print the new directory CID",
	Long: `Add (or replace) the entry <name> -> <target> in the directory <parent-dir>.
The parent may be a flat directory or a HAMT shard; a flat directory that
grows past dir.shard_split_threshold is converted into a shard. The
original directory is never modified.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		parent, err := resolveArg(ctx, args[0])
		if err != nil {
			return err
		}
		target, err := resolveArg(ctx, args[2])
		if err != nil {
			return err
		}

		size := linkSize
		if size < 0 {
			if size, err = DV.Editor.CumulativeSize(ctx, target); err != nil {
				return err
			}
		}

		opts := DV.DirOptions
		opts.Flush = !linkDryRun

		unlock, err := DV.GCLock.RLock(ctx)
		if err != nil {
			return err
		}
		defer unlock()

		id, err := DV.Editor.AddLink(ctx, parent, args[1], size, target, opts)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

func init() {
	linkCmd.Flags().Int64Var(&linkSize, "size", -1, "link size to record (default: cumulative size of target)")
	linkCmd.Flags().BoolVarP(&linkDryRun, "dry-run", "n", false, "compute the new CID without writing any node")
	rootCmd.AddCommand(linkCmd)
}
