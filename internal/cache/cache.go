package cache

import "context"

// PNGCache keeps rendered images keyed by the content they encode.
type PNGCache interface {
	GetPNG(ctx context.Context, key string) ([]byte, bool, error)
	SetPNG(ctx context.Context, key string, png []byte) error
}

var _ PNGCache = (*RedisCache)(nil)
