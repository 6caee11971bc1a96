package otlivecli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"otterlive/internal/core/indexer"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [folder]",
		Short: "Index a folder and keep the index live until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := rootArg(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEngine(cmd, root)
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.ErrOrStderr()
			e.AddListener(indexer.ProgressFuncs{
				Finished: func() {
					st := e.Stats()
					_, _ = fmt.Fprintf(out, "indexed: %d documents, %d keys\n", st.Documents, st.Keys)
				},
			})

			if err := e.IndexFolder(root); err != nil {
				return err
			}
			if err := e.Start(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "watching %s (Ctrl-C to stop)\n", root)

			<-ctx.Done()
			e.StopScheduling()
			if err := e.Manager.Close(); err != nil {
				return err
			}
			return e.Save(context.Background())
		},
	}
	return cmd
}
