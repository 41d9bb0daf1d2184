// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinary_Healthy(t *testing.T) {
	t.Run("will report unhealthy", func(t *testing.T) {
		t.Run("if it is the zero value", func(t *testing.T) {
			var b Binary
			if !assert.False(t, b.Healthy(context.Background())) {
				return
			}
		})

		t.Run("if it was set healthy and then unhealthy", func(t *testing.T) {
			var b Binary
			b.Set(true)
			b.Set(false)
			if !assert.False(t, b.Healthy(context.Background())) {
				return
			}
		})
	})

	t.Run("will report healthy", func(t *testing.T) {
		t.Run("if it was set healthy", func(t *testing.T) {
			var b Binary
			b.Set(true)
			if !assert.True(t, b.Healthy(context.Background())) {
				return
			}
		})
	})
}

func TestAnd(t *testing.T) {
	t.Run("will report healthy", func(t *testing.T) {
		t.Run("if all metrics are healthy", func(t *testing.T) {
			var a, b Binary
			a.Set(true)
			b.Set(true)

			if !assert.True(t, And(&a, &b).Healthy(context.Background())) {
				return
			}
		})

		t.Run("if there are no metrics", func(t *testing.T) {
			if !assert.True(t, And().Healthy(context.Background())) {
				return
			}
		})
	})

	t.Run("will report unhealthy", func(t *testing.T) {
		t.Run("if any metric is unhealthy", func(t *testing.T) {
			var a, b Binary
			a.Set(true)

			if !assert.False(t, And(&a, &b).Healthy(context.Background())) {
				return
			}
		})
	})
}
