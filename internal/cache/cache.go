package cache

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache stores encoded conversion results by key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key from the corpus bytes and a fingerprint of every
// option that changes the result
func Key(corpus string, fingerprint string) string {
	d := xxhash.New()
	_, _ = d.WriteString(fingerprint)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(corpus)
	return "jsonxl-v1-" + strconv.FormatUint(d.Sum64(), 16) + "-" + strconv.Itoa(len(corpus))
}
