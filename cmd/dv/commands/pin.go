package commands

import (
	"fmt"
	"strings"

	"dagvault/pkg/pin"

	"github.com/spf13/cobra"
)

var (
	pinRecursive   bool
	unpinRecursive bool
	pinLsType      string
	pinLsQuiet     bool
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Pin objects to local storage",
}

var pinAddCmd = &cobra.Command{
	Use:   "add <path>...",
	Short: "Pin objects so they are kept by garbage collection",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := DV.Pins.Add(cmd.Context(), args, pin.Recursive(pinRecursive))
		if err != nil {
			return err
		}
		mode := "directly"
		if pinRecursive {
			mode = "recursively"
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "📌 pinned %s %s\n", id, mode)
		}
		return nil
	},
}

var pinRmCmd = &cobra.Command{
	Use:   "rm <path>...",
	Short: "Remove pins",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := DV.Pins.Rm(cmd.Context(), args, pin.Recursive(unpinRecursive))
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "unpinned %s\n", id)
		}
		return nil
	},
}

var pinLsCmd = &cobra.Command{
	Use:   "ls [path]...",
	Short: "List pinned objects",
	Long: `Without arguments, list all pins of the given type (direct, recursive,
indirect or all). With paths, report how each path is pinned; paths that
are not pinned are reported individually and do not stop the listing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		seq, err := DV.Pins.Ls(cmd.Context(), pin.Type(pinLsType), pin.Paths(args...))
		if err != nil {
			return err
		}

		var failed []string
		for p, err := range seq {
			if err != nil {
				if len(args) == 0 || isContextErr(err) {
					return err
				}
				failed = append(failed, err.Error())
				fmt.Fprintf(cmd.ErrOrStderr(), "❌ %v\n", err)
				continue
			}
			if pinLsQuiet {
				fmt.Fprintln(out, p.Cid)
				continue
			}
			fmt.Fprintln(out, p.String())
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d path(s) failed: %s", len(failed), strings.Join(failed, "; "))
		}
		return nil
	},
}

var pinVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every recursive pin is fully present",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		bad, err := DV.Pins.Verify(cmd.Context())
		if err != nil {
			return err
		}
		direct, recursive := DV.Pins.Counts()
		for _, b := range bad {
			fmt.Fprintf(out, "❌ %s: %v\n", b.Cid, b.Err)
		}
		if len(bad) > 0 {
			return fmt.Errorf("%d of %d recursive pins are incomplete", len(bad), recursive)
		}
		fmt.Fprintf(out, "✅ %d recursive and %d direct pins ok\n", recursive, direct)
		return nil
	},
}

func init() {
	pinAddCmd.Flags().BoolVarP(&pinRecursive, "recursive", "r", true, "recursively pin the object graph")
	pinRmCmd.Flags().BoolVarP(&unpinRecursive, "recursive", "r", true, "allow removing recursive pins")
	pinLsCmd.Flags().StringVarP(&pinLsType, "type", "t", string(pin.ModeAll), "pin type: direct, recursive, indirect or all")
	pinLsCmd.Flags().BoolVarP(&pinLsQuiet, "quiet", "q", false, "only print CIDs")

	pinCmd.AddCommand(pinAddCmd, pinRmCmd, pinLsCmd, pinVerifyCmd)
	rootCmd.AddCommand(pinCmd)
}
