package cli

import (
	"github.com/spf13/cobra"
)

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the locally stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.openSession(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Auth().Logout(cmd.Context()); err != nil {
				return err
			}
			c.io.Println("✓ Logged out. Queued changes are kept until the next login.")
			return nil
		},
	}
}
