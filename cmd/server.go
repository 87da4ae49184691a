package cmd

import (
	"github.com/spf13/cobra"

	"kwadrop/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the kwadrop HTTP server",
	Long:  `Run the kwadrop HTTP server, serving the room and playlist API.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
