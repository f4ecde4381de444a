package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"eventreg/utils"
)

type cachedBody struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// sha1Hex keeps redis keys short whatever the query string looks like.
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom builds the redis key for a cacheable request, or "" when the
// request must not be cached. Every key lives under utils.CacheKeyPrefix so
// one purge after an event change clears them all.
func CacheKeyFrom(c *gin.Context) string {
	if c.Request.Method != http.MethodGet {
		return ""
	}
	path := c.FullPath()
	if path == "" {
		return ""
	}
	return utils.CacheKeyPrefix + sha1Hex(path+"|"+c.Request.URL.Query().Encode())
}

// ResponseCache stores 2xx GET responses in redis for ttl. Redis failures fall
// through to the handler.
func ResponseCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := CacheKeyFrom(c)
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
		} else if err != nil && err != redis.Nil {
			log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}

		c.Writer.Header().Set("X-Cache", "MISS")
		buf := &bytes.Buffer{}
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: buf}
		c.Writer = bw

		c.Next()

		if bw.Status() < 200 || bw.Status() >= 300 {
			return
		}
		header := c.Writer.Header().Clone()
		header.Del("X-Cache")
		item := cachedBody{Status: bw.Status(), Header: header, Body: buf.Bytes()}

		var o bytes.Buffer
		if err := gob.NewEncoder(&o).Encode(item); err != nil {
			return
		}
		if err := rdb.Set(ctx, key, o.Bytes(), ttl).Err(); err != nil {
			log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// bufferedWriter copies the body into buf while it is written to the client.
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
