package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/ipfs/go-cid"
	"github.com/spf13/cobra"

	"dagvault/pkg/exporter"
)

var getOutput string

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List directory entries (flat or sharded)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveArg(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		links, err := DV.Exporter.ListDir(cmd.Context(), id)
		if err != nil {
			return err
		}
		return exporter.PrintListing(cmd.OutOrStdout(), links)
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Write file contents to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveArg(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := DV.Exporter.Cat(cmd.Context(), id, cmd.OutOrStdout()); err != nil {
			return fmt.Errorf("cat failed: %w", err)
		}
		return nil
	},
}

var objectCmd = &cobra.Command{
	Use:   "object <path>",
	Short: "Describe a node: codec, UnixFS type, links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveArg(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return DV.Exporter.PrintNode(cmd.Context(), id, cmd.OutOrStdout())
	},
}

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Restore a file or directory tree to the local filesystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		id, err := resolveArg(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		target := getOutput
		if target == "" {
			target = id.String()
		}

		var files int
		var total uint64
		err = DV.Exporter.Restore(cmd.Context(), id, target, func(path string, _ cid.Cid, size uint64) {
			files++
			total += size
			fmt.Fprintf(out, "  %s (%s)\n", path, humanize.IBytes(size))
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ Restored %d files, %s to %s\n", files, humanize.IBytes(total), target)
		return nil
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "target path (default: the CID)")
	rootCmd.AddCommand(lsCmd, catCmd, objectCmd, getCmd)
}
