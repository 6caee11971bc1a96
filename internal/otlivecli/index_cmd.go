package otlivecli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"otterlive/internal/core/indexer"
)

func newIndexCommand() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Index a folder, wait for the tasks and save the snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			e, err := openEngine(cmd, root)
			if err != nil {
				return err
			}
			defer e.Close()

			e.AddListener(indexer.ProgressFuncs{
				Progress: func(p int) {
					if !optionsFrom(cmd).Jsonl {
						_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "\rindexing %3d%%", p)
					}
				},
			})

			if err := e.IndexFolder(root); err != nil {
				return err
			}
			for _, f := range trimArgs(files) {
				if _, err := e.IndexFile(f); err != nil {
					return err
				}
			}
			if err := e.Wait(cmd.Context()); err != nil {
				return err
			}
			if err := e.Save(cmd.Context()); err != nil {
				return err
			}
			if !optionsFrom(cmd).Jsonl {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr())
			}
			return printStats(cmd, e.Stats())
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "also index and track these files (can repeat)")
	return cmd
}

func rootArg(args []string) (string, error) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !st.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
