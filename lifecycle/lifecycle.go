// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package lifecycle collects cleanup actions which must run once a
// command has finished serving.
package lifecycle

import (
	"context"
	"errors"
	"sync"
)

// Hook is an action run at a fixed point of a command's lifetime.
type Hook interface {
	Run(context.Context) error
}

// HookFunc is a func variant of the [Hook] interface.
type HookFunc func(context.Context) error

// Run implements the [Hook] interface.
func (f HookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type multiHook []Hook

func (mh multiHook) Run(ctx context.Context) error {
	var errs []error
	for _, h := range mh {
		err := h.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MultiHook runs every hook in order, even after one fails, and joins
// their errors.
func MultiHook(hooks ...Hook) Hook {
	return multiHook(hooks)
}

// Context accumulates the hooks registered while a command starts up.
type Context struct {
	mu       sync.Mutex
	postRuns []Hook
}

// OnPostRun registers hook to be run after the command returns.
func (c *Context) OnPostRun(hook Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.postRuns = append(c.postRuns, hook)
}

// PostRun returns the registered hooks composed into one. Like deferred
// calls they run in the reverse order of registration, so resources are
// released before the ones they depend on.
func (c *Context) PostRun() Hook {
	c.mu.Lock()
	defer c.mu.Unlock()

	hooks := make(multiHook, len(c.postRuns))
	for i, h := range c.postRuns {
		hooks[len(hooks)-1-i] = h
	}
	return hooks
}

type key struct{}

// NewContext returns a copy of parent carrying lc.
func NewContext(parent context.Context, lc *Context) context.Context {
	return context.WithValue(parent, key{}, lc)
}

// FromContext returns the [Context] carried by ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	lc, ok := ctx.Value(key{}).(*Context)
	return lc, ok
}
