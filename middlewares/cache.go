package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventhub/utils"
)

// perRequestHeaders are set by other middlewares and never replayed from cache.
var perRequestHeaders = []string{"X-Cache", RequestIDHeader, "X-Quota-Used"}

type cachedBody struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// sha1Hex keeps list keys short whatever the query string looks like.
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom returns the Redis key for a cacheable request and its kind
// ("list" or "item"), or "" when the response must not be cached. Only the
// event reads every user sees identically are cached. /events/upcoming and
// /events/past depend on the clock and are always served fresh.
func CacheKeyFrom(c *gin.Context) (string, string) {
	if c.Request.Method != http.MethodGet {
		return "", ""
	}
	switch path := c.FullPath(); path {
	case "/events/:id":
		return utils.EventItemKey(c.Param("id")), "item"
	case "/events", "/events/filter":
		return utils.EventListPrefix + sha1Hex(path+"|"+c.Request.URL.RawQuery), "list"
	default:
		return "", ""
	}
}

// ResponseCache serves cached 2xx responses from Redis and stores misses for
// ttl. Redis failures fall through to the handler.
func ResponseCache(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, _ := CacheKeyFrom(c)
		if key == "" {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		if b, err := rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
			var hit cachedBody
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&hit); err == nil {
				for k, vals := range hit.Header {
					for _, v := range vals {
						c.Writer.Header().Add(k, v)
					}
				}
				c.Writer.Header().Set("X-Cache", "HIT")
				c.Status(hit.Status)
				_, _ = c.Writer.Write(hit.Body)
				c.Abort()
				return
			}
		}

		buf := &bytes.Buffer{}
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: buf}
		c.Writer = bw
		// header must be set before the handler writes the body
		c.Writer.Header().Set("X-Cache", "MISS")

		c.Next()

		if bw.Status() < 200 || bw.Status() >= 300 {
			return
		}
		header := c.Writer.Header().Clone()
		for _, h := range perRequestHeaders {
			header.Del(h)
		}
		var o bytes.Buffer
		if err := gob.NewEncoder(&o).Encode(cachedBody{Status: bw.Status(), Header: header, Body: buf.Bytes()}); err != nil {
			return
		}
		if err := rdb.Set(ctx, key, o.Bytes(), ttl).Err(); err != nil {
			slog.WarnContext(ctx, "response cache write failed", "key", key, "error", err)
		}
	}
}

type bufferedWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
