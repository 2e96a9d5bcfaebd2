// Package groutine starts goroutines carrying a pprof label with their name, so
// profiles and stack dumps show which ANT channel or send a goroutine serves.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go starts fn in a goroutine labelled with name.
// A nil parent is treated as context.Background().
//
//	groutine.Go(ctx, "ant-send-ch2", func(ctx context.Context) {
//	    // work
//	})
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}

	go pprof.Do(parent, pprof.Labels("goroutine_name", name), func(ctx context.Context) {
		fn(context.WithValue(ctx, nameKey, name))
	})
}

// Name returns the name of the goroutine that owns ctx, or "" outside Go.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(nameKey).(string)
	return s
}
