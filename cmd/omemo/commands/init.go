package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate identity keys and a registration id, and store them securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := wire.Engine.EnsureIdentity(); err != nil {
				return err
			}
			regID, err := wire.Engine.RegistrationID()
			if err != nil {
				return err
			}
			fp, err := wire.Engine.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Printf("Identity ready for %s.\nDevice id: %d\nFingerprint: %s\n", wire.Account.Bare(), regID, fp)
			return nil
		},
	}
}
