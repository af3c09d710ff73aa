package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *Cli) listCommand() *cobra.Command {
	var fetch bool
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "Print the cached records of a collection as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(cmd.Context(), args[0], fetch)
		},
	}
	cmd.Flags().BoolVar(&fetch, "fetch", false, "hydrate the collection from the backend first")
	return cmd
}

func (c *Cli) runList(ctx context.Context, collection string, fetch bool) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}

	if fetch {
		if _, err := s.Sync().Fetch(ctx, collection); err != nil {
			return err
		}
	}

	for _, e := range s.Sync().GetAll(collection) {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.ID, err)
		}
		c.io.Println(string(line))
	}
	return nil
}
