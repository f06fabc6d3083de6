package middlewares

import (
	"bytes"
	"net/http"

	"github.com/flowstock/flowstock_backend/config"
	"github.com/flowstock/flowstock_backend/models"
	"github.com/flowstock/flowstock_backend/utils"
	"github.com/gin-gonic/gin"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Swappable so unit tests can exercise the replay path without a database.
var (
	lookupIdempotencyKey = models.LookupIdempotencyKey
	storeIdempotencyKey  = models.StoreIdempotencyKey
)

type bodyCapturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyCapturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyCapturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated
// (actor, endpoint, Idempotency-Key) triple instead of re-running the
// mutation. Only successful and client-error responses are recorded;
// a 5xx leaves the key unused so the client can retry.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !config.IdempotencyEnabled() {
			c.Next()
			return
		}
		key := c.GetHeader(idempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "idempotency key too long"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		actor, ok := utils.GetUsernameFromContext(ctx)
		if !ok || actor == "" {
			// Anonymous callers are keyed by client ip.
			if ip, ipOk := utils.GetClientIpFromContext(ctx); ipOk && ip != "" {
				actor = ip
			} else {
				actor = c.ClientIP()
			}
		}
		endpoint := c.Request.Method + " " + c.FullPath()

		if stored, err := lookupIdempotencyKey(ctx, actor, endpoint, key); err == nil && stored != nil {
			c.Header("Idempotency-Replayed", "true")
			c.Data(stored.ResponseStatus, "application/json", []byte(stored.ResponseBody))
			c.Abort()
			return
		}

		writer := &bodyCapturingWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		storeIdempotencyKey(ctx, actor, endpoint, key, status, writer.body.String())
	}
}
