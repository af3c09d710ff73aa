package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func (c *Cli) errorsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List mutations that exhausted their retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runErrors(cmd.Context())
		},
	}

	var timeout time.Duration
	retry := &cobra.Command{
		Use:   "retry <opId>",
		Short: "Send a dead-lettered mutation again as a new operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRetry(cmd.Context(), args[0], timeout)
		},
	}
	retry.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the acknowledgement")

	cmd.AddCommand(retry)
	return cmd
}

func (c *Cli) runErrors(ctx context.Context) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}
	dead, err := s.Sync().DeadLetters(ctx)
	if err != nil {
		return err
	}

	if len(dead) == 0 {
		c.io.Println("No failed mutations.")
		return nil
	}
	for _, op := range dead {
		c.io.Printf("%s  %s %s/%s  attempts=%d  %s\n",
			op.OpID, op.Type, op.Collection, op.EntityID, op.Attempts, op.LastError)
	}
	c.io.Println("Run 'umzugsync errors retry <opId>' to send one again.")
	return nil
}

func (c *Cli) runRetry(ctx context.Context, opID string, timeout time.Duration) error {
	s, err := c.openSession(ctx)
	if err != nil {
		return err
	}

	dead, err := s.Sync().DeadLetters(ctx)
	if err != nil {
		return err
	}
	collection := ""
	for _, op := range dead {
		if op.OpID == opID {
			collection = op.Collection
			break
		}
	}

	online := c.connect(ctx, s)

	res, err := s.Sync().RetryDeadLetter(ctx, opID)
	if err != nil {
		return err
	}
	c.io.Printf("Retrying %s as op %s\n", opID, res.OpID)

	if !online {
		return nil
	}
	return c.awaitResult(ctx, s, collection, res, timeout)
}
