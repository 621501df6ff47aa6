package mw

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

// recordingWriter tees the body into buf while it is written to the client.
type recordingWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w recordingWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w recordingWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// ResponseCache stores 200 responses of GET routes keyed by request URI.
// Handlers that mutate a resource call Invalidate with the resource path so
// unrelated cached routes survive. Replayed responses carry X-Cache: HIT.
type ResponseCache struct {
	store *cache.Cache
	ttl   time.Duration
}

// NewResponseCache creates a cache whose entries live for ttl.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		store: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Invalidate drops every entry whose path starts with pathPrefix and
// returns how many were dropped.
func (rc *ResponseCache) Invalidate(pathPrefix string) int {
	dropped := 0
	for key := range rc.store.Items() {
		if strings.HasPrefix(key, pathPrefix) {
			rc.store.Delete(key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of live entries.
func (rc *ResponseCache) Len() int {
	return rc.store.ItemCount()
}

// Middleware serves hits and records misses.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := c.Request.URL.RequestURI()
		if v, found := rc.store.Get(key); found {
			hit := v.(cachedResponse)
			header := c.Writer.Header()
			for k, values := range hit.headers {
				header[k] = values
			}
			header.Set("X-Cache", "HIT")
			c.Writer.WriteHeader(hit.status)
			c.Writer.Write(hit.body)
			c.Abort()
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = rec
		c.Next()

		if rec.Status() != http.StatusOK {
			return
		}
		rc.store.Set(key, cachedResponse{
			status:  rec.Status(),
			headers: rec.Header().Clone(),
			body:    rec.buf.Bytes(),
		}, rc.ttl)
	}
}
