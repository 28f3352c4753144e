package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
	realtimesvc "github.com/orgalumni/alumni/services/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type streamApi struct {
	hub      *realtimesvc.Hub
	auth     *Auth
	userSvc  user.Service
	logger   core.Logger
	upgrader websocket.Upgrader
}

func registerStreamAPI(public *echo.Group, api *streamApi) {
	public.GET("/stream", api.stream)
}

// stream forwards the data changes to a websocket client, authenticated by the ?token= query parameter.
// Clients only receive notifications and re-fetch what they display.
func (api *streamApi) stream(ctx echo.Context) error {
	claims, err := api.auth.ParseToken(ctx.QueryParam("token"))
	if err != nil {
		return err
	}
	usr, err := api.userSvc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return errUnauthorized
		}
		return errors.Wrap(err, "finding user by ID")
	}
	switch {
	case usr.IsBlocked:
		return errAccountBlocked
	case !usr.IsVerified:
		return errPendingVerification
	}

	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied to the client
		api.logger.Debug("upgrading stream connection", err)
		return nil
	}

	sub := api.hub.Subscribe()
	done := make(chan struct{})
	defer func() {
		sub.Unsubscribe()
		_ = conn.Close()
		<-done
	}()

	// the read loop only handles control frames and notices the client leaving
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case change, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return nil
			}
			if err = conn.WriteJSON(change); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// tokens travel in the query string, not in cookies
		CheckOrigin: func(*http.Request) bool { return true },
	}
}
