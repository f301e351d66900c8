package imagepipe

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
)

// DefaultCacheTTL is how long proxied images stay servable. Covers are
// only needed while the user reviews the analysis, an hour is generous.
const DefaultCacheTTL = time.Hour

// imageCache stores oversized covers for the /api/image proxy. bigcache
// holds one []byte per entry, so the MIME type is length-prefixed onto the
// image bytes.
type imageCache struct {
	cache *bigcache.BigCache
}

func newImageCache(ttl time.Duration) (*imageCache, error) {
	config := bigcache.DefaultConfig(ttl)
	config.CleanWindow = 2 * time.Minute
	config.Verbose = false

	cache, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("initializing image cache: %w", err)
	}
	return &imageCache{cache: cache}, nil
}

func (c *imageCache) set(id, mime string, data []byte) error {
	entry := make([]byte, 4+len(mime)+len(data))
	binary.BigEndian.PutUint32(entry, uint32(len(mime)))
	copy(entry[4:], mime)
	copy(entry[4+len(mime):], data)
	return c.cache.Set(id, entry)
}

func (c *imageCache) get(id string) (mime string, data []byte, ok bool) {
	entry, err := c.cache.Get(id)
	if err != nil {
		return "", nil, false
	}
	if len(entry) < 4 {
		return "", nil, false
	}
	mimeLen := int(binary.BigEndian.Uint32(entry))
	if len(entry) < 4+mimeLen {
		return "", nil, false
	}
	return string(entry[4 : 4+mimeLen]), entry[4+mimeLen:], true
}

func (c *imageCache) close() error {
	return c.cache.Close()
}
