package cli

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/auth"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/cache"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/client/events"
	"github.com/firusaleh/hummert-umzug-frontend-sub003/internal/models"
)

func (c *Cli) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected, replay queued mutations and print live changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context())
		},
	}
}

func (c *Cli) runWatch(ctx context.Context) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}

	var unsubscribe []func()
	defer func() {
		for _, off := range unsubscribe {
			off()
		}
	}()

	unsubscribe = append(unsubscribe, s.Transport().On(events.StateChanged, func(e events.Event) {
		var state models.ConnectionState
		if err := json.Unmarshal(e.Data, &state); err == nil {
			c.io.Printf("[%s] connection %s\n", time.Now().Format(time.TimeOnly), state)
		}
	}))
	unsubscribe = append(unsubscribe, s.Sync().SubscribeErrors(func(e models.SyncError) {
		c.io.Printf("[%s] %v\n", e.Timestamp.Local().Format(time.TimeOnly), e)
	}))
	for _, name := range c.cfg.Collections {
		unsubscribe = append(unsubscribe, s.Sync().Subscribe(name, c.printChange))
	}

	if err := s.Connect(ctx); err != nil {
		if errors.Is(err, auth.ErrNotAuthenticated) || errors.Is(err, auth.ErrSessionExpired) {
			return err
		}
		// переподключения уже запланированы менеджером
		c.logger.Warn("Initial connect failed, retrying in background", "error", err)
	}

	if err := s.Hydrate(ctx); err != nil {
		c.logger.Warn("Hydration incomplete", "error", err)
	}
	c.io.Printf("Watching %d collection(s), press Ctrl+C to stop\n", len(c.cfg.Collections))

	<-ctx.Done()
	return nil
}

func (c *Cli) printChange(change cache.Change) {
	ts := time.Now().Format(time.TimeOnly)
	switch change.Kind {
	case cache.ChangeDelete:
		c.io.Printf("[%s] %s/%s deleted\n", ts, change.Collection, change.ID)
	case cache.ChangeReplace:
		c.io.Printf("[%s] %s reloaded\n", ts, change.Collection)
	default:
		suffix := ""
		if change.Entity != nil && change.Entity.IsOptimistic {
			suffix = " (pending)"
		}
		c.io.Printf("[%s] %s/%s updated%s\n", ts, change.Collection, change.ID, suffix)
	}
}
