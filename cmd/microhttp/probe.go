// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/z5labs/microhttp/client"

	"github.com/spf13/cobra"
)

// ProbeError is returned when the probed server did not respond with 200.
type ProbeError struct {
	StatusCode int
	Body       string
}

// Error implements the [builtin.error] interface.
func (e ProbeError) Error() string {
	return fmt.Sprintf("probe failed with status %d: %s", e.StatusCode, e.Body)
}

func (a *app) probeCommand() *cobra.Command {
	var (
		url    string
		method string
		body   string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send a request to a microhttp server and print the response body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = "http://" + net.JoinHostPort(a.cfg.LoopbackAlias, strconv.FormatUint(uint64(a.cfg.Port), 10)) + "/"
			}

			c := client.New(
				client.Logger(a.zap),
				client.Timeout(a.cfg.Probe.Timeout),
				client.MaxAttempts(a.cfg.Probe.MaxAttempts),
			)
			res, err := c.Do(cmd.Context(), method, url, []byte(body))
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, string(res.Payload))
			if res.StatusCode != http.StatusOK {
				return ProbeError{StatusCode: res.StatusCode, Body: string(res.Payload)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "url to probe (default http://<loopbackAlias>:<port>/)")
	cmd.Flags().StringVar(&method, "method", http.MethodPost, "request method")
	cmd.Flags().StringVar(&body, "body", client.ProbeBody, "request body")
	return cmd
}
