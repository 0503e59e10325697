package commands

import (
	"fmt"
	"io/fs"

	"dagvault/pkg/client"
	"dagvault/pkg/ignore"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var pushPin bool

var pushCmd = &cobra.Command{
	Use:         "push <path>",
	Short:       "Upload files to a dv-server",
	Long:        `Upload a file, or every non-ignored file under a directory, to the server at remote.addr. Files the server already has are not re-sent.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationNoApp: ""},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		cli, err := client.NewDVClient(viper.GetString("remote.addr"))
		if err != nil {
			return err
		}
		defer cli.Close()

		matcher, err := ignore.NewMatcher(args[0])
		if err != nil {
			return err
		}

		success, failures := 0, 0
		err = matcher.Walk(args[0], func(path, rel string, _ fs.DirEntry) error {
			id, instant, err := cli.UploadFile(ctx, path, pushPin)
			if err != nil {
				fmt.Fprintf(out, "❌ %s: %v\n", rel, err)
				failures++
				return nil
			}
			mark := "⬆️  uploaded"
			if instant {
				mark = "⚡ instant"
			}
			fmt.Fprintf(out, "%s %s %s\n", mark, id, rel)
			success++
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\nSummary: %d succeeded, %d failed.\n", success, failures)
		if failures > 0 {
			return fmt.Errorf("some files failed to upload")
		}
		return nil
	},
}

func init() {
	pushCmd.Flags().BoolVar(&pushPin, "pin", true, "pin uploaded files on the server")
	rootCmd.AddCommand(pushCmd)
}
