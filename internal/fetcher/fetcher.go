package fetcher

import (
	"context"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// Fetcher retrieves one page of the feed.
type Fetcher interface {
	// Fetch retrieves the content at rawURL. Any non-2xx outcome is an error.
	Fetch(ctx context.Context, rawURL string) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
