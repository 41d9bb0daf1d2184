// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package lifecycle

import (
	"context"
	"fmt"
)

func ExampleContext_PostRun() {
	var lc Context
	lc.OnPostRun(HookFunc(func(ctx context.Context) error {
		fmt.Println("flush logs")
		return nil
	}))
	lc.OnPostRun(HookFunc(func(ctx context.Context) error {
		fmt.Println("shutdown tracer")
		return nil
	}))

	err := lc.PostRun().Run(context.Background())
	if err != nil {
		fmt.Println(err)
		return
	}

	// Output: shutdown tracer
	// flush logs
}
