// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import "context"

// DefaultContentType is used for any Response without a content type.
const DefaultContentType = "text/plain"

// Response is the value produced by a Handler for a single request.
type Response struct {
	ContentType string
	Payload     []byte
}

// Text returns a text/plain Response holding the UTF-8 bytes of s.
func Text(s string) Response {
	return Response{
		ContentType: DefaultContentType,
		Payload:     []byte(s),
	}
}

// Bytes returns a Response with the given content type and payload.
func Bytes(contentType string, b []byte) Response {
	return Response{
		ContentType: contentType,
		Payload:     b,
	}
}

func (r Response) contentType() string {
	if r.ContentType == "" {
		return DefaultContentType
	}
	return r.ContentType
}

// Handler produces a Response from the full request URI and request body.
// For requests without a body, body is [EmptyBody].
type Handler interface {
	Handle(ctx context.Context, uri, body string) (Response, error)
}

// HandlerFunc is a func implementation of the Handler interface.
type HandlerFunc func(ctx context.Context, uri, body string) (Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, uri, body string) (Response, error) {
	return f(ctx, uri, body)
}

// Echo returns the default route handler. It replies with the request body as text/plain.
func Echo() Handler {
	return HandlerFunc(func(_ context.Context, _, body string) (Response, error) {
		return Text(body), nil
	})
}
