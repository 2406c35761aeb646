package cmd

import (
	"github.com/spf13/cobra"

	"interview-transcriber/config"
	server2 "interview-transcriber/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and transcription workers",
		Run: func(cmd *cobra.Command, args []string) {
			server2.RunHttp(config)
		},
	}
}
