package main

import (
	"fmt"

	castserver "github.com/castkeeper/castkeeper/internal/server"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the castkeeper version",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "castkeeper v%s\n", castserver.Version)
			return nil
		},
	}
}
