package main

import (
	"fmt"

	"github.com/soypat/depict"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of depict",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "depict version %s\n", depict.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
