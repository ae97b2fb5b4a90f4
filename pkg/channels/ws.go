package channels

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"onebridge/pkg/logger"
	"onebridge/pkg/onebot"
)

const wsReconnectDelay = 3 * time.Second

// startWS runs the forward-WebSocket transport: the adapter dials the
// gateway's event socket and treats every frame like a webhook body.
func (c *OneBotChannel) startWS(ctx context.Context) {
	wsCtx, cancel := context.WithCancel(ctx)
	c.ws.set(cancel)

	runChannelTask("onebot", "websocket reader", func() error {
		return c.wsLoop(wsCtx)
	}, nil)
}

func (c *OneBotChannel) wsLoop(ctx context.Context) error {
	header := http.Header{}
	if token := c.cfg.OneBot.AccessToken; token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.OneBot.WSUrl, header)
		if err != nil {
			logger.WarnCF("onebot", "websocket dial failed", map[string]interface{}{
				"ws_url":          c.cfg.OneBot.WSUrl,
				logger.FieldError: err.Error(),
			})
			if !sleepCtx(ctx, c.wsBackoff) {
				return ctx.Err()
			}
			continue
		}
		logger.InfoCF("onebot", "websocket connected", map[string]interface{}{
			"ws_url": c.cfg.OneBot.WSUrl,
		})

		c.readFrames(ctx, conn)
		conn.Close()

		if !sleepCtx(ctx, c.wsBackoff) {
			return ctx.Err()
		}
	}
}

// readFrames consumes events until the connection or context dies.
func (c *OneBotChannel) readFrames(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.WarnCF("onebot", "websocket read failed, reconnecting", map[string]interface{}{
					logger.FieldError: err.Error(),
				})
			}
			return
		}
		raw, err := onebot.ParseEvent(data)
		if err != nil {
			logger.DebugCF("onebot", "unparseable websocket frame", map[string]interface{}{
				logger.FieldError: err.Error(),
			})
			continue
		}
		go c.processEvent(raw)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
