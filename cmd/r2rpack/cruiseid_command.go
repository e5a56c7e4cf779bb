package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"r2rpack/internal/openvdm"
)

func newCruiseIDCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cruise-id",
		Short: "Print the active cruise ID reported by OpenVDM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			id, err := openvdm.NewClient(cfg).CruiseID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
