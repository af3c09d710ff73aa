package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/session"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/sync"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

type mutateFlags struct {
	data    string
	timeout time.Duration
	wait    bool
}

func (c *Cli) mutateCommand() *cobra.Command {
	var flags mutateFlags
	cmd := &cobra.Command{
		Use:   "mutate <collection> <create|update|delete> [id]",
		Short: "Apply a mutation optimistically and send it (or queue it while offline)",
		Example: `  umzugsync mutate umzuege update 64f1c2 --data '{"status":"geplant"}'
  umzugsync mutate tasks create --data '{"titel":"Kartons packen"}'`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 3 {
				id = args[2]
			}
			return c.runMutate(cmd.Context(), args[0], models.OpType(args[1]), id, flags)
		},
	}
	cmd.Flags().StringVar(&flags.data, "data", "", "JSON object with the mutation fields")
	cmd.Flags().BoolVar(&flags.wait, "wait", true, "wait for the server acknowledgement")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 30*time.Second, "how long to wait for the acknowledgement")
	return cmd
}

func (c *Cli) runMutate(ctx context.Context, collection string, opType models.OpType, id string, flags mutateFlags) error {
	var payload map[string]any
	if flags.data != "" {
		if err := json.Unmarshal([]byte(flags.data), &payload); err != nil {
			return fmt.Errorf("invalid --data: %w", err)
		}
	}

	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	online := c.connect(ctx, s)

	res, err := s.Sync().Mutate(ctx, collection, opType, id, payload)
	if err != nil {
		return err
	}

	if res.Queued {
		c.io.Printf("Queued %s %s/%s (op %s)\n", opType, collection, res.EntityID, res.OpID)
	} else {
		c.io.Printf("Sent %s %s/%s (op %s)\n", opType, collection, res.EntityID, res.OpID)
	}

	if !online || !flags.wait {
		return nil
	}
	return c.awaitResult(ctx, s, collection, res, flags.timeout)
}

// awaitResult ждет подтверждения и сообщает итог операции
func (c *Cli) awaitResult(ctx context.Context, s *session.Session, collection string, res sync.MutationResult, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.WaitIdle(waitCtx, 50*time.Millisecond); err != nil {
		return fmt.Errorf("no acknowledgement within %s, the mutation stays queued: %w", timeout, err)
	}

	for _, e := range s.Sync().SyncErrors() {
		if e.OpID == res.OpID {
			return e
		}
	}

	if st := s.Sync().Status(); st.Queued > 0 {
		c.io.Printf("Connection lost, %d mutation(s) queued\n", st.Queued)
		return nil
	}

	entityID := res.EntityID
	if res.TempID != "" {
		entityID, _ = s.Sync().ResolveID(collection, res.TempID)
	}
	c.io.Printf("✓ Confirmed %s/%s\n", collection, entityID)
	return nil
}
