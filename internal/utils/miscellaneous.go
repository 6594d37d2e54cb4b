package utils

import "context"

func Must[T any](obj T, err error) T {
	if err != nil {
		panic(err)
	}
	return obj
}

// IsContextDone reports whether ctx is done, a nil context is never done.
func IsContextDone(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
