package transcript

import (
	"context"
	"errors"
)

// ErrNotFound means no transcript exists for the video in any of the
// requested languages.
var ErrNotFound = errors.New("transcript not found")

// Client retrieves time-stamped caption text for a platform video id,
// trying the given languages in preference order.
type Client interface {
	Fetch(ctx context.Context, videoID string, languages []string) (string, error)
}
