package echoapi

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/services/realtime"
)

const tableParam = "table"

var (
	// streamPingInterval keeps idle connections open through proxies.
	streamPingInterval = 25 * time.Second

	errStreamDisabled = echo.NewHTTPError(http.StatusServiceUnavailable, "change feed is not available")
)

func registerStreamAPI(g *echo.Group, jwt echo.MiddlewareFunc, hub *realtime.Hub) {
	g.GET("/stream", streamChanges(hub), jwt)
}

// streamChanges sends the changes visible to the user as Server-Sent Events:
// one "event: <table>" / "data: <change>" frame per change and a ": ping" comment when idle.
// ?table= may be repeated to narrow the tables.
func streamChanges(hub *realtime.Hub) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if hub == nil {
			return errStreamDisabled
		}
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}

		res := ctx.Response()
		flusher, ok := res.Writer.(http.Flusher)
		if !ok {
			return errStreamUnsupported
		}
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")

		sub := hub.Subscribe(realtime.Filter{
			UserID: claims.Subject,
			Tables: core.CleanStrings(ctx.QueryParams()[tableParam], true /* lower */),
		})
		defer sub.Close()

		res.WriteHeader(http.StatusOK)
		if _, err = io.WriteString(res, ": connected\n\n"); err != nil {
			return nil
		}
		flusher.Flush()

		ticker := time.NewTicker(streamPingInterval)
		defer ticker.Stop()

		done := ctx.Request().Context().Done()
		for {
			select {
			case <-done:
				return nil
			case change, ok := <-sub.Changes():
				if !ok { // hub closed
					return nil
				}
				data, err := sonic.Marshal(change)
				if err != nil {
					ctx.Logger().Error(errors.Wrap(err, "marshalling change"))
					continue
				}
				if err = writeEvent(res, change.Table, data); err != nil {
					return nil // client gone
				}
			case <-ticker.C:
				if _, err = io.WriteString(res, ": ping\n\n"); err != nil {
					return nil
				}
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event string, data []byte) error {
	if _, err := io.WriteString(w, "event: "+event+"\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n\n")
	return err
}
