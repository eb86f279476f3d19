package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is one client connection.
type conn struct {
	srv    *Server
	ws     *websocket.Conn
	id     string
	script script
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *conn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.srv.config.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// close sends a close frame with code and closes the socket.
func (c *conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		c.ws.Close()
	})
}

// serve answers prompts until the peer leaves, the connection idles out,
// or ctx is cancelled.
func (c *conn) serve(ctx context.Context) {
	name := c.script.schema().Name()
	defer c.close(websocket.CloseNormalClosure, "")

	for {
		c.ws.SetReadDeadline(time.Now().Add(c.srv.config.IdleTimeout))
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				c.logger.Info("closing connection due to user inactivity")
				c.srv.metrics.timeout(name)
				c.writeJSON(c.script.timeoutFrame())
				c.close(websocket.CloseNormalClosure, "")
				return
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				c.logger.Warn("read error", "error", err)
			}
			return
		}

		c.srv.metrics.prompt(name)
		c.logger.Debug("prompt received", "bytes", len(msg))

		x := &exchange{c: c, delay: c.srv.config.ChunkDelay}
		err = c.script.respond(ctx, x, string(msg))
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case errors.Is(err, errScripted):
			c.logger.Error("error processing prompt", "error", err)
			c.srv.metrics.failure(name)
			if err := c.writeJSON(c.script.errorFrame()); err != nil {
				return
			}
		default:
			c.logger.Debug("write failed", "error", err)
			return
		}
	}
}
