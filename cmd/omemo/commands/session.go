package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"omemo/internal/domain"
)

// sessionCmd runs X3DH against the bundle of every known device of a contact
// that has no session yet.
func sessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "session <jid>",
		Short: "Establish sessions with a contact's devices",
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

			// Refresh the stored list first; a contact never seen has none.
			if ids, err := wire.Module.FetchDeviceIDs(ctx, jid); err == nil {
				wire.Coordinator.OnDeviceListUpdate(jid, ids)
			}
			ready, err := wire.Coordinator.PrepareRecipients(ctx, jid)
			if err != nil {
				return fmt.Errorf("starting sessions with %q: %w", jid.Bare(), err)
			}
			if len(ready) == 0 {
				fmt.Printf("No reachable devices for %s\n", jid.Bare())
				return nil
			}
			fmt.Printf("Sessions with %s: %v\n", jid.Bare(), ready)
			return nil
		},
	}
}
