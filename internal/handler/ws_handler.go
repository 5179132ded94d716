/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, upgrading
the HTTP connection to WebSocket, and binding the connection to the orchestrator.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"cloak/internal/app/socket"
	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/limiter"
	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Identity is established afterwards over the socket with cloak-begin or cloak-resume.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session := socket.NewConn(conn, deps.Cloak)

		logx.Info("WebSocket connection established", "session_id", session.ID())

		session.Serve()
	}
}
