package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached returns nil when no server is configured, which disables the
// pending relation cache.
func NewMemcached(server string) *memcache.Client {
	if server == "" {
		return nil
	}
	client := memcache.New(server)
	client.Timeout = 500 * time.Millisecond
	return client
}
