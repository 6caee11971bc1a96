package otlivecli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"otterlive/internal/model"
)

func newStatsCommand() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print snapshot statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := rootArg(optionalArg(root))
			if err != nil {
				return err
			}
			e, err := openEngine(cmd, dir)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.Wait(cmd.Context()); err != nil {
				return err
			}
			return printStats(cmd, e.Stats())
		},
	}
	cmd.Flags().StringVarP(&root, "root", "r", "", "indexed folder, used to locate the default snapshot (default: .)")
	return cmd
}

func printStats(cmd *cobra.Command, st model.Stats) error {
	if optionsFrom(cmd).Jsonl {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(st)
	}
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "documents:       %d\n", st.Documents)
	_, _ = fmt.Fprintf(w, "keys:            %d\n", st.Keys)
	_, _ = fmt.Fprintf(w, "tracked files:   %d\n", st.TrackedFiles)
	_, _ = fmt.Fprintf(w, "tracked folders: %d\n", st.TrackedFolders)
	_, _ = fmt.Fprintf(w, "watched folders: %d\n", st.WatchedFolders)
	return nil
}
