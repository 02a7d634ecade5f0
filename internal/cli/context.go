package cli

import (
	"context"
	"os"

	"github.com/example/foreman/internal/ctxutil"
)

// NewContext returns the base context for CLI operations, carrying the
// acting identity from FOREMAN_ACTOR when set. Agent prompts export it
// so hook callbacks are attributable in the activity log.
func NewContext() context.Context {
	ctx := context.Background()
	if actor := os.Getenv("FOREMAN_ACTOR"); actor != "" {
		ctx = ctxutil.WithActor(ctx, actor)
	}
	return ctx
}
