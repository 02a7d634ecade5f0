package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/foreman/internal/wire"
)

// ServeCmd returns the serve command. It rearms any pending retry timers
// from the database and keeps the process alive so they can fire.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine daemon, rearming pending timers",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched := wire.Scheduler()
			rearmed, err := sched.Rearm(NewContext())
			if err != nil {
				return fmt.Errorf("failed to rearm scheduled jobs: %w", err)
			}

			fmt.Printf("✓ foreman serving (%d pending timers rearmed)\n", rearmed)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			fmt.Println("shutting down")
			sched.Stop()
			return nil
		},
	}
}
