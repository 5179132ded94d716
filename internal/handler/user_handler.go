/*
Package handler provides HTTP handler functions for the admin user endpoints, broadcast and stats.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cloak/internal/app/cloak"
	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/randx"
	"cloak/internal/pkg/req"
	"cloak/internal/pkg/resp"
)

// UserDetail is the admin view of a user.
type UserDetail struct {
	cloak.UserSummary
	Connected         bool       `json:"connected"`
	DisconnectedSince *time.Time `json:"disconnectedSince,omitempty"`
	RoomID            string     `json:"roomId,omitempty"`
	InLobby           bool       `json:"inLobby"`
}

func userDetail(c *cloak.Cloak, u *cloak.User) UserDetail {
	d := UserDetail{
		UserSummary: u.Summary(),
		Connected:   u.Connected(),
		InLobby:     c.Lobby().HasMember(u),
	}
	if !u.Connected() {
		since := u.DisconnectedSince()
		d.DisconnectedSince = &since
	}
	if room := u.Room(); room != nil {
		d.RoomID = room.ID()
	}
	return d
}

// Stats is the orchestrator snapshot returned by /api/stats.
type Stats struct {
	Rooms          int `json:"rooms"`
	Users          int `json:"users"`
	ConnectedUsers int `json:"connectedUsers"`
	LobbyMembers   int `json:"lobbyMembers"`
}

// HandleListUsers returns every registered user, connected or not.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []UserDetail
		ok := deps.onLoop(w, r, func() {
			all := deps.Cloak.Users()
			users = make([]UserDetail, 0, len(all))
			for _, u := range all {
				users = append(users, userDetail(deps.Cloak, u))
			}
		})
		if !ok {
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}

// HandleGetUser returns one user.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !randx.IsValidID(id) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		var (
			detail UserDetail
			found  bool
		)
		ok := deps.onLoop(w, r, func() {
			var u *cloak.User
			if u, found = deps.Cloak.User(id); found {
				detail = userDetail(deps.Cloak, u)
			}
		})
		if !ok {
			return
		}

		if !found {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}
		resp.RespondSuccess(w, r, detail)
	}
}

// HandleDeleteUser removes a user from its rooms and closes its session.
func HandleDeleteUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !randx.IsValidID(id) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		var deleted bool
		ok := deps.onLoop(w, r, func() {
			if u, found := deps.Cloak.User(id); found {
				deleted = deps.Cloak.DeleteUser(u)
			}
		})
		if !ok {
			return
		}

		if !deleted {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		logx.Info("User deleted through admin API.", "user_id", id)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMessageUser sends an application message to one user.
func HandleMessageUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !randx.IsValidID(id) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		var input MessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := input.validate(); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var (
			found     bool
			connected bool
		)
		ok := deps.onLoop(w, r, func() {
			u, exists := deps.Cloak.User(id)
			if !exists {
				return
			}
			found = true
			connected = u.Connected()
			u.Message(input.Name, input.Data)
		})
		if !ok {
			return
		}

		if !found {
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}
		resp.RespondSuccess(w, r, map[string]bool{"delivered": connected})
	}
}

// HandleBroadcast sends an application message to every user.
func HandleBroadcast(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input MessageInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if customErr := input.validate(); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var recipients int
		ok := deps.onLoop(w, r, func() {
			recipients = deps.Cloak.UserCount()
			deps.Cloak.MessageAll(input.Name, input.Data)
		})
		if !ok {
			return
		}
		resp.RespondSuccess(w, r, map[string]int{"recipients": recipients})
	}
}

// HandleStats returns room and user counts.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stats Stats
		ok := deps.onLoop(w, r, func() {
			stats.Rooms = deps.Cloak.RoomCount()
			stats.Users = deps.Cloak.UserCount()
			stats.LobbyMembers = deps.Cloak.Lobby().MemberCount()
			for _, u := range deps.Cloak.Users() {
				if u.Connected() {
					stats.ConnectedUsers++
				}
			}
		})
		if !ok {
			return
		}
		resp.RespondSuccess(w, r, stats)
	}
}
