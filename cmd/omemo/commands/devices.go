package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"omemo/internal/domain"
)

func devicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices <jid>",
		Short: "Fetch a contact's device list and show session state per device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jid, err := domain.ParseJID(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}
			if err := connect(); err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			ids, err := wire.Module.FetchDeviceIDs(ctx, jid)
			switch {
			case errors.Is(err, domain.ErrNodeNotFound):
				fmt.Printf("%s has not published a device list\n", jid.Bare())
			case err != nil:
				return err
			default:
				wire.Coordinator.OnDeviceListUpdate(jid, ids)
			}

			own := wire.Coordinator.OwnDeviceID()
			for _, id := range wire.Coordinator.DeviceIDsFor(jid) {
				state := "no session"
				switch {
				case jid.BareEqual(wire.Account) && id == own:
					state = "this device"
				case wire.Coordinator.IsSessionValid(jid, id):
					state = "session"
				}
				fmt.Printf("%10d  %s\n", id, state)
			}
			return nil
		},
	}
}
