// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// circuitRoundTripper stops sending requests to a server which keeps
// refusing connections. Responses never count as failures.
type circuitRoundTripper struct {
	http.RoundTripper
	cb *gobreaker.CircuitBreaker
}

func newCircuitRoundTripper(rt http.RoundTripper, o *options) *circuitRoundTripper {
	log := o.logger.Named("circuit")
	return &circuitRoundTripper{
		RoundTripper: rt,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "microhttp",
			MaxRequests: 1,
			Timeout:     o.openFor,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= o.tripCount
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				switch to {
				case gobreaker.StateOpen:
					log.Error("circuit has been opened", zap.String("from", from.String()))
				case gobreaker.StateHalfOpen:
					log.Warn("circuit is now half open and letting a request through")
				case gobreaker.StateClosed:
					log.Info("circuit has been closed")
				}
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (rt *circuitRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	v, err := rt.cb.Execute(func() (interface{}, error) {
		return rt.RoundTripper.RoundTrip(req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Response), nil
}

// State reports the circuit state, for example "closed" or "open".
func (c *Client) State() string {
	return c.circuit.cb.State().String()
}
