package commands

import (
	"fmt"
	"path"

	"dagvault/pkg/exporter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var mkdirParents bool

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Edit the mutable file tree rooted at the files root",
}

var filesLnCmd = &cobra.Command{
	Use:   "ln <target> <path>",
	Short: "Link an existing object into the files tree",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := resolveArg(ctx, args[0])
		if err != nil {
			return err
		}
		dir, name := path.Split(path.Clean("/" + args[1]))

		unlock, err := DV.GCLock.RLock(ctx)
		if err != nil {
			return err
		}
		defer unlock()

		size, err := DV.Editor.CumulativeSize(ctx, target)
		if err != nil {
			return err
		}
		root, err := DV.Files.Link(ctx, dir, name, target, size)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "🔗 %s -> %s (root %s)\n", path.Join(dir, name), target, root)
		return nil
	},
}

var filesMkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory in the files tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := DV.Files.Mkdir(cmd.Context(), args[0], mkdirParents)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "📁 %s (root %s)\n", args[0], root)
		return nil
	},
}

var filesLsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory in the files tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "/"
		if len(args) > 0 {
			p = args[0]
		}
		links, err := DV.Files.Ls(cmd.Context(), p)
		if err != nil {
			return err
		}
		return exporter.PrintListing(cmd.OutOrStdout(), links)
	},
}

var filesStatCmd = &cobra.Command{
	Use:   "stat [path]",
	Short: "Show information about a path in the files tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := "/"
		if len(args) > 0 {
			p = args[0]
		}
		st, err := DV.Files.Stat(cmd.Context(), p)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, st.Cid)
		fmt.Fprintf(out, "Type:           %s\n", st.Type)
		fmt.Fprintf(out, "Size:           %s\n", humanize.IBytes(st.Size))
		fmt.Fprintf(out, "CumulativeSize: %s\n", humanize.IBytes(st.CumulativeSize))
		fmt.Fprintf(out, "Links:          %d\n", st.Blocks)
		return nil
	},
}

func init() {
	filesMkdirCmd.Flags().BoolVarP(&mkdirParents, "parents", "p", false, "create missing parent directories")
	filesCmd.AddCommand(filesLnCmd, filesMkdirCmd, filesLsCmd, filesStatCmd)
	rootCmd.AddCommand(filesCmd)
}
