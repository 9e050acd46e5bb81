package cmd

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/edgarlab/secrnn/envconfig"
	"github.com/edgarlab/secrnn/server"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the monitor server",
		Args:    cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ln, err := net.Listen("tcp", envconfig.Host().Host)
			if err != nil {
				return err
			}

			return server.Serve(ln)
		},
	}
}
