package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// StoredResponse is the replayable result of a request.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// IdempotencyStore persists responses keyed by idempotency key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (StoredResponse, bool, error)
	// Lock claims a key while its first request is running. It returns false
	// if another request already holds it.
	Lock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
	Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
}

// Idempotency replays the stored response when a request repeats an
// Idempotency-Key already used by the same account on the same route.
// Server errors are not stored so the client can retry them.
func Idempotency(store IdempotencyStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(HeaderIdempotencyKey)
			if key == "" {
				return next(c)
			}
			ctx := c.Request().Context()

			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"success": false, "code": "validation_error", "message": "unreadable body"})
			}
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			scoped := "idem:" + UserID(c) + ":" + c.Request().Method + ":" + c.Path() + ":" + key

			stored, found, err := store.Get(ctx, scoped)
			if err != nil {
				slog.WarnContext(ctx, "idempotency lookup failed", "module", "middleware", "key", key, "error", err)
				return next(c)
			}
			if found {
				if stored.RequestHash != hash {
					return c.JSON(http.StatusConflict, echo.Map{"success": false, "code": "idempotency_key_reused", "message": "Idempotency-Key was used with a different request body"})
				}
				slog.InfoContext(ctx, "idempotency hit, replaying stored response", "module", "middleware", "key", key)
				c.Response().Header().Set("X-Idempotency-Hit", "true")
				return c.Blob(stored.Status, stored.ContentType, stored.Body)
			}

			locked, err := store.Lock(ctx, scoped, 30*time.Second)
			if err != nil {
				slog.WarnContext(ctx, "idempotency lock failed", "module", "middleware", "key", key, "error", err)
				return next(c)
			}
			if !locked {
				return c.JSON(http.StatusConflict, echo.Map{"success": false, "code": "idempotency_in_progress", "message": "a request with this Idempotency-Key is still being processed"})
			}
			defer func() {
				if err := store.Unlock(context.WithoutCancel(ctx), scoped); err != nil {
					slog.WarnContext(ctx, "idempotency unlock failed", "module", "middleware", "key", key, "error", err)
				}
			}()

			rec := &captureWriter{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				return err
			}

			status := c.Response().Status
			if status >= http.StatusInternalServerError {
				return nil
			}
			resp := StoredResponse{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
				RequestHash: hash,
			}
			if err := store.Save(context.WithoutCancel(ctx), scoped, resp, ttl); err != nil {
				slog.ErrorContext(ctx, "failed to save idempotency key", "module", "middleware", "key", key, "error", err)
			}
			return nil
		}
	}
}

type captureWriter struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
