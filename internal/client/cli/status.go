package cli

import (
	"context"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication, queue and hydration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

func (c *Cli) runStatus(ctx context.Context) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	st, err := s.Status(ctx)
	if err != nil {
		return err
	}

	c.io.Println("=== Status ===")
	if st.Authenticated {
		c.io.Printf("User: %s\n", st.User)
		if !st.TokenExpires.IsZero() {
			if remaining := time.Until(st.TokenExpires); remaining > 0 {
				c.io.Printf("Token expires: %s (in %s)\n", st.TokenExpires.Format(time.RFC3339), remaining.Round(time.Second))
			} else {
				c.io.Println("⚠️  Token has expired. Please login again.")
			}
		}
	} else {
		c.io.Println("Not authenticated. Run 'umzugsync login'.")
	}

	c.io.Printf("Queued mutations: %d\n", st.Sync.Queued)
	c.io.Printf("Dead letters: %d\n", st.DeadLetters)

	names := make([]string, 0, len(st.LastFetch))
	for name := range st.LastFetch {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.io.Printf("Hydrated %s: %s\n", name, st.LastFetch[name].Format(time.RFC3339))
	}

	if st.Sync.Queued > 0 {
		c.io.Println("Run 'umzugsync watch' to replay queued mutations.")
	}
	return nil
}
