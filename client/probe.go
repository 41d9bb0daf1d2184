// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package client

import "context"

// ProbeBody is what Probe sends. The default route of a microhttp
// server echoes it back.
const ProbeBody = "Hoge"

// Probe posts ProbeBody to url.
func (c *Client) Probe(ctx context.Context, url string) (Result, error) {
	return c.Post(ctx, url, []byte(ProbeBody))
}
