// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"github.com/z5labs/microhttp"

	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the default echo route until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []microhttp.Option{
				microhttp.ListenOnPort(a.cfg.Port),
				microhttp.LoopbackAlias(a.cfg.LoopbackAlias),
				microhttp.LogHandler(a.logHandler),
			}
			if a.cfg.Address != "" {
				opts = append(opts, microhttp.Address(a.cfg.Address))
			}
			if a.cfg.Serialize {
				opts = append(opts, microhttp.SerializeRequests())
			}

			srv := microhttp.New(opts...)
			return srv.Run(cmd.Context())
		},
	}
}
