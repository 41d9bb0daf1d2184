// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package microhttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

func Example() {
	srv := New(
		Address("127.0.0.1"),
		LoopbackAlias("127.0.0.1"),
		ListenOnPort(0),
	)
	srv.AddFunction("upper", func(_ context.Context, _, body string) (Response, error) {
		return Response{
			ContentType: "text/plain",
			Payload:     []byte(strings.ToUpper(body)),
		}, nil
	})

	err := srv.Start(context.Background())
	if err != nil {
		fmt.Println(err)
		return
	}
	defer srv.Stop()

	resp, err := http.Post(
		fmt.Sprintf("http://%s/upper", srv.Addrs()[0]),
		"text/plain",
		strings.NewReader("hoge"),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(resp.StatusCode, string(b))
	// Output: 200 HOGE
}
