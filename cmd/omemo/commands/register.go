package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your bundle and make sure your device list includes this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := connect(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			out, err := wire.Coordinator.Refresh(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Device %d registered (device list %s)\n", wire.Coordinator.OwnDeviceID(), out)
			return nil
		},
	}
}
