package gtranslate

import (
	"context"
	"errors"
)

// ErrFetchFailed marks every failure to obtain audio from the endpoint.
var ErrFetchFailed = errors.New("gtranslate: fetch failed")

// Request describes a single synthesis call. Text must already fit the
// endpoint's length limit.
type Request struct {
	Text     string
	Language string
}

// Fetcher returns raw mp3 bytes for a request, so the synthesizer can be
// tested without the network.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Getter is the transport used by Client: it retrieves the body behind url.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}
