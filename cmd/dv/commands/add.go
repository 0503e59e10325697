package commands

import (
	"fmt"
	"time"

	"dagvault/pkg/app"
	"dagvault/pkg/index"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	addPin   bool
	addQuiet bool
)

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Import a file or directory into the block store",
	Long: `Chunk and store a file or directory tree. Directories larger than
dir.shard_split_threshold entries are written as HAMT shards. Files and
directories matched by .dvignore are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		start := time.Now()

		res, err := DV.Add(cmd.Context(), args[0], app.AddOptions{
			Pin: addPin,
			OnFile: func(rel string, e index.Entry, reused bool) {
				if addQuiet {
					return
				}
				mark := "added"
				if reused {
					mark = "unchanged"
				}
				fmt.Fprintf(out, "%s %s %s (%s)\n", mark, e.Cid, rel, humanize.IBytes(e.Size))
			},
		})
		if err != nil {
			return err
		}

		if addQuiet {
			fmt.Fprintln(out, res.Cid)
			return nil
		}
		fmt.Fprintf(out, "✅ Added %s %d files (%d unchanged), %s in %s\n",
			res.Cid, res.Files, res.Reused, humanize.IBytes(res.Size), time.Since(start).Round(time.Millisecond))
		if addPin {
			fmt.Fprintf(out, "📌 Pinned %s recursively\n", res.Cid)
		}
		return nil
	},
}

func init() {
	addCmd.Flags().BoolVar(&addPin, "pin", true, "pin the imported root recursively")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "only print the root CID")
	rootCmd.AddCommand(addCmd)
}
