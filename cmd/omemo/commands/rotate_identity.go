package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// rotateIdentityCmd replaces the identity keys. Peers see a new fingerprint for
// the same device id once the new bundle is published.
func rotateIdentityCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "rotate-identity",
		Short: "Replace the identity keys and republish the bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			fp, err := wire.Engine.RotateIdentity()
			if err != nil {
				return err
			}
			fmt.Printf("New fingerprint: %s\n", fp)
			if offline {
				return nil
			}
			if err := connect(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if _, err := wire.Coordinator.Refresh(ctx); err != nil {
				return err
			}
			fmt.Println("Bundle republished")
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "rotate locally without publishing")
	return cmd
}
