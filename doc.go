// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

/*
Package microhttp provides a small embeddable HTTP server which dispatches
requests to handler functions by the first segment of the request path.

A handler receives the absolute request URI and the request body, which
is only read for methods containing POST. Every other method passes the
literal "empty" instead. Whatever the handler returns is written back
with status 200 and a ProcessSeconds header holding the time spent
dispatching, in milliseconds. A missing route, a handler error or a
handler panic is written back as a 500 carrying the error text.

	srv := microhttp.New(microhttp.ListenOnPort(8080))
	srv.AddFunction("time", func(ctx context.Context, uri, body string) (microhttp.Response, error) {
		return microhttp.Response{
			ContentType: "text/plain",
			Payload:     []byte(time.Now().String()),
		}, nil
	})

	err := srv.Start(ctx)
	if err != nil {
		return err
	}
	defer srv.Stop()

The empty key always routes to a handler which echoes the request body,
unless one was registered before Start.
*/
package microhttp
