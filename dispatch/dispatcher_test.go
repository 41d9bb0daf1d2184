// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/z5labs/microhttp/route"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTable(routes map[string]Handler) *route.Table[Handler] {
	table := route.NewTable[Handler]()
	for key, h := range routes {
		table.Set(key, h)
	}
	return table
}

func serve(d *Dispatcher, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	d.ServeHTTP(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.Nil(t, err)
	return string(b)
}

func TestDispatcher_ServeHTTP(t *testing.T) {
	t.Run("will respond with 200", func(t *testing.T) {
		t.Run("if the handler returns a response", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"users": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					return Bytes("application/json", []byte(`{"id":1}`)), nil
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/users/1", nil))

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "application/json", resp.Header.Get("Content-Type")) {
				return
			}
			if !assert.Equal(t, `{"id":1}`, readBody(t, resp)) {
				return
			}
		})

		t.Run("with text/plain if the response has no content type", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"raw": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					return Response{Payload: []byte("hi")}, nil
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/raw", nil))

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, DefaultContentType, resp.Header.Get("Content-Type")) {
				return
			}
			if !assert.Equal(t, "hi", readBody(t, resp)) {
				return
			}
		})

		t.Run("with an empty body if the response is the zero value", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"nothing": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					return Response{}, nil
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/nothing", nil))

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Empty(t, readBody(t, resp)) {
				return
			}
		})

		t.Run("and echo the body if the default route is requested", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"": Echo(),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Hoge")))

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, DefaultContentType, resp.Header.Get("Content-Type")) {
				return
			}
			if !assert.Equal(t, []byte("Hoge"), []byte(readBody(t, resp))) {
				return
			}
		})
	})

	t.Run("will respond with 500", func(t *testing.T) {
		t.Run("if no handler is registered for the path key", func(t *testing.T) {
			d := New(newTable(nil))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/missing", nil))

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, DefaultContentType, resp.Header.Get("Content-Type")) {
				return
			}
			if !assert.NotEmpty(t, resp.Header.Get(ProcessSecondsHeader)) {
				return
			}
			body := readBody(t, resp)
			if !assert.Equal(t, RouteNotFoundError{Key: "missing"}.Error(), body) {
				return
			}
		})

		t.Run("if the handler returns an error", func(t *testing.T) {
			handlerErr := errors.New("database unavailable")
			d := New(newTable(map[string]Handler{
				"users": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					return Response{}, handlerErr
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/users", nil))

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Contains(t, readBody(t, resp), handlerErr.Error()) {
				return
			}
		})

		t.Run("with a stack trace if the handler panics", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"users": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					panic("boom")
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/users", nil))

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			body := readBody(t, resp)
			if !assert.Contains(t, body, "recovered from panic: boom") {
				return
			}
			if !assert.Contains(t, body, "goroutine") {
				return
			}
		})

		t.Run("if the request body can not be read", func(t *testing.T) {
			readErr := errors.New("connection reset")
			called := false
			d := New(newTable(map[string]Handler{
				"": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					called = true
					return Response{}, nil
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodPost, "/", iotest.ErrReader(readErr)))

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.Contains(t, readBody(t, resp), readErr.Error()) {
				return
			}
			if !assert.False(t, called) {
				return
			}
		})
	})

	t.Run("will serve subsequent requests", func(t *testing.T) {
		t.Run("if a previous handler failed", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"bad": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					panic(errors.New("bad handler"))
				}),
				"good": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					return Text("ok"), nil
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/bad", nil))
			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}

			resp = serve(d, httptest.NewRequest(http.MethodGet, "/good", nil))
			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "ok", readBody(t, resp)) {
				return
			}
		})
	})
}

func TestDispatcher_HandlerArguments(t *testing.T) {
	capture := func(uri, body *string) Handler {
		return HandlerFunc(func(_ context.Context, u, b string) (Response, error) {
			*uri = u
			*body = b
			return Response{}, nil
		})
	}

	t.Run("will pass the empty placeholder", func(t *testing.T) {
		t.Run("if the method does not carry a body", func(t *testing.T) {
			for _, method := range []string{http.MethodGet, http.MethodDelete, http.MethodPut, http.MethodHead} {
				t.Run(method, func(t *testing.T) {
					var uri, body string
					d := New(newTable(map[string]Handler{"users": capture(&uri, &body)}))

					req := httptest.NewRequest(method, "/users", strings.NewReader("ignored"))
					resp := serve(d, req)

					if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
						return
					}
					if !assert.Equal(t, EmptyBody, body) {
						return
					}
				})
			}
		})
	})

	t.Run("will pass the request body", func(t *testing.T) {
		t.Run("if the method is POST", func(t *testing.T) {
			var uri, body string
			d := New(newTable(map[string]Handler{"users": capture(&uri, &body)}))

			serve(d, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader("name=hoge")))

			if !assert.Equal(t, "name=hoge", body) {
				return
			}
		})

		t.Run("as an empty string if the POST body is empty", func(t *testing.T) {
			var uri, body string
			d := New(newTable(map[string]Handler{"users": capture(&uri, &body)}))

			serve(d, httptest.NewRequest(http.MethodPost, "/users", nil))

			if !assert.Equal(t, "", body) {
				return
			}
		})
	})

	t.Run("will pass the absolute request uri", func(t *testing.T) {
		var uri, body string
		d := New(newTable(map[string]Handler{"users": capture(&uri, &body)}))

		serve(d, httptest.NewRequest(http.MethodGet, "http://localhost:8080/users/1?verbose=true", nil))

		if !assert.Equal(t, "http://localhost:8080/users/1?verbose=true", uri) {
			return
		}
	})
	t.Run("will use the local address as the uri host", func(t *testing.T) {
		t.Run("if the request has no Host header", func(t *testing.T) {
			var uri, body string
			d := New(newTable(map[string]Handler{"users": capture(&uri, &body)}))

			req := httptest.NewRequest(http.MethodGet, "/users/1", nil)
			req.Host = ""
			local := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9000}
			req = req.WithContext(context.WithValue(req.Context(), http.LocalAddrContextKey, local))

			resp := serve(d, req)

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "http://127.0.0.1:9000/users/1", uri) {
				return
			}
		})
	})
}

func TestDispatcher_NoHostHeader(t *testing.T) {
	t.Run("will route by the path key", func(t *testing.T) {
		t.Run("if an HTTP/1.0 client sends no Host header", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"":      Echo(),
				"users": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) { return Text("users"), nil }),
			}))
			srv := httptest.NewServer(d)
			defer srv.Close()

			conn, err := net.Dial("tcp", srv.Listener.Addr().String())
			require.Nil(t, err)
			defer conn.Close()

			_, err = io.WriteString(conn, "GET /users HTTP/1.0\r\n\r\n")
			require.Nil(t, err)

			resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
			require.Nil(t, err)

			if !assert.Equal(t, http.StatusOK, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "users", readBody(t, resp)) {
				return
			}
		})
	})
}

func TestDispatcher_ProcessSeconds(t *testing.T) {
	t.Run("will report the elapsed milliseconds", func(t *testing.T) {
		start := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
		calls := 0

		d := New(newTable(map[string]Handler{"": Echo()}))
		d.now = func() time.Time {
			calls++
			if calls == 1 {
				return start
			}
			return start.Add(1500 * time.Microsecond)
		}

		resp := serve(d, httptest.NewRequest(http.MethodGet, "/", nil))

		if !assert.Equal(t, "1.5", resp.Header.Get(ProcessSecondsHeader)) {
			return
		}
	})

	t.Run("will be a decimal number", func(t *testing.T) {
		d := New(newTable(nil))

		resp := serve(d, httptest.NewRequest(http.MethodGet, "/missing", nil))

		ms, err := strconv.ParseFloat(resp.Header.Get(ProcessSecondsHeader), 64)
		if !assert.Nil(t, err) {
			return
		}
		if !assert.GreaterOrEqual(t, ms, float64(0)) {
			return
		}
	})
}

func TestDispatcher_ProcessSecondsOnFailure(t *testing.T) {
	t.Run("will use the same header name as successful responses", func(t *testing.T) {
		t.Run("if the handler fails", func(t *testing.T) {
			d := New(newTable(map[string]Handler{
				"fail": HandlerFunc(func(_ context.Context, _, _ string) (Response, error) {
					return Response{}, errors.New("boom")
				}),
			}))

			resp := serve(d, httptest.NewRequest(http.MethodGet, "/fail", nil))

			if !assert.Equal(t, http.StatusInternalServerError, resp.StatusCode) {
				return
			}
			if !assert.NotEmpty(t, resp.Header.Values(ProcessSecondsHeader)) {
				return
			}
			for name := range resp.Header {
				if !assert.NotContains(t, name, "Microhttpserver") {
					return
				}
			}
		})
	})
}

type logRecord struct {
	Level  string `json:"level"`
	Msg    string `json:"msg"`
	URI    string `json:"uri"`
	Client string `json:"client"`
	Body   string `json:"body"`
	Error  string `json:"error"`
}

func decodeLogs(t *testing.T, buf *bytes.Buffer) []logRecord {
	t.Helper()
	var records []logRecord
	dec := json.NewDecoder(buf)
	for dec.More() {
		var rec logRecord
		require.Nil(t, dec.Decode(&rec))
		records = append(records, rec)
	}
	return records
}

func TestDispatcher_Logging(t *testing.T) {
	t.Run("will write an access log", func(t *testing.T) {
		t.Run("if the request is dispatched successfully", func(t *testing.T) {
			var buf bytes.Buffer
			d := New(
				newTable(map[string]Handler{"": Echo()}),
				LogHandler(slog.NewJSONHandler(&buf, nil)),
			)

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("Hoge"))
			req.RemoteAddr = "10.0.0.7:51234"
			serve(d, req)

			records := decodeLogs(t, &buf)
			if !assert.Len(t, records, 1) {
				return
			}
			rec := records[0]
			if !assert.Equal(t, "requested", rec.Msg) {
				return
			}
			if !assert.Equal(t, "http://example.com/", rec.URI) {
				return
			}
			if !assert.Equal(t, "10.0.0.7:51234", rec.Client) {
				return
			}
			if !assert.Equal(t, "Hoge", rec.Body) {
				return
			}
		})
	})

	t.Run("will write an error log", func(t *testing.T) {
		t.Run("if the request fails", func(t *testing.T) {
			var buf bytes.Buffer
			d := New(newTable(nil), LogHandler(slog.NewJSONHandler(&buf, nil)))

			serve(d, httptest.NewRequest(http.MethodGet, "/missing", nil))

			records := decodeLogs(t, &buf)
			if !assert.Len(t, records, 1) {
				return
			}
			rec := records[0]
			if !assert.Equal(t, "ERROR", rec.Level) {
				return
			}
			if !assert.Equal(t, "failed to dispatch request", rec.Msg) {
				return
			}
			if !assert.Equal(t, RouteNotFoundError{Key: "missing"}.Error(), rec.Error) {
				return
			}
		})
	})
}

func TestDispatcher_Telemetry(t *testing.T) {
	t.Run("will record the path key on the request span", func(t *testing.T) {
		sr := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

		d := New(newTable(map[string]Handler{"users": Echo()}))

		ctx, span := tp.Tracer("test").Start(context.Background(), "request")
		req := httptest.NewRequest(http.MethodGet, "/users", nil).WithContext(ctx)
		serve(d, req)
		span.End()

		spans := sr.Ended()
		if !assert.Len(t, spans, 1) {
			return
		}
		if !assert.Contains(t, spans[0].Attributes(), attribute.String("microhttp.path_key", "users")) {
			return
		}
	})

	t.Run("will count requests by status code", func(t *testing.T) {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

		d := New(newTable(map[string]Handler{"": Echo()}), MeterProvider(mp))

		serve(d, httptest.NewRequest(http.MethodGet, "/", nil))
		serve(d, httptest.NewRequest(http.MethodGet, "/missing", nil))
		serve(d, httptest.NewRequest(http.MethodGet, "/missing", nil))

		var rm metricdata.ResourceMetrics
		err := reader.Collect(context.Background(), &rm)
		if !assert.Nil(t, err) {
			return
		}

		counts := map[int64]int64{}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				if m.Name != "microhttp.dispatch.requests" {
					continue
				}
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !assert.True(t, ok) {
					return
				}
				for _, dp := range sum.DataPoints {
					status, _ := dp.Attributes.Value("http.status_code")
					counts[status.AsInt64()] += dp.Value
				}
			}
		}

		if !assert.Equal(t, map[int64]int64{200: 1, 500: 2}, counts) {
			return
		}
	})
}
