package otlivecli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

type searchLine struct {
	Query string `json:"q"`
	Path  string `json:"path"`
}

func newSearchCommand() *cobra.Command {
	var root string
	cmd := &cobra.Command{
		Use:   "search <token>...",
		Short: "Print the files containing each token (exact match)",
		Args:  cobra.MinimumNArgs(1),
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

			jsonl := optionsFrom(cmd).Jsonl
			enc := json.NewEncoder(cmd.OutOrStdout())
			found := false
			for _, q := range trimArgs(args) {
				for _, p := range e.Search(q) {
					found = true
					if jsonl {
						if err := enc.Encode(searchLine{Query: q, Path: p}); err != nil {
							return err
						}
						continue
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
				}
			}
			if !found && !jsonl {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "no matches")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&root, "root", "r", "", "indexed folder, used to locate the default snapshot (default: .)")
	return cmd
}

func optionalArg(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
