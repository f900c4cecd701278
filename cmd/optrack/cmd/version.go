package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the optrack CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "optrack version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Options profit tracker with FIFO lot matching")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
