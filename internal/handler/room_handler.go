/*
Package handler provides HTTP handler functions for the admin room endpoints.
*/
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cloak/internal/app/cloak"
	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
	"cloak/internal/pkg/req"
	"cloak/internal/pkg/resp"
)

type CreateRoomInput struct {
	// Name is the room name; empty uses the default name.
	Name string `json:"name,omitempty"`
	// Size is the capacity; 0 uses the configured default room size.
	Size int `json:"size,omitempty"`
}

type MessageInput struct {
	// Name is the application message name, sent to clients as message-<name>.
	Name string `json:"name"`
	// Data is the message payload, forwarded verbatim.
	Data json.RawMessage `json:"data,omitempty"`
}

func (in MessageInput) validate() *errs.CustomError {
	if in.Name == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}
	return nil
}

// HandleListRooms returns every room except the lobby.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rooms []cloak.RoomSummary
		if !deps.onLoop(w, r, func() { rooms = deps.Cloak.RoomSummaries() }) {
			return
		}
		resp.RespondSuccess(w, r, map[string]any{"rooms": rooms})
	}
}

// HandleCreateRoom creates an empty room.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CreateRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.Size < 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		var room cloak.RoomSummary
		if !deps.onLoop(w, r, func() { room = deps.Cloak.CreateRoom(input.Name, input.Size).Summary() }) {
			return
		}

		resp.RespondCreated(w, r, room)
	}
}

// HandleGetRoom returns one room, or the lobby for the id "lobby".
func HandleGetRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var (
			room  cloak.RoomSummary
			found bool
		)
		ok := deps.onLoop(w, r, func() {
			var target *cloak.Room
			target, found = lookupRoom(deps.Cloak, id)
			if found {
				room = target.Summary()
			}
		})
		if !ok {
			return
		}

		if !found {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		resp.RespondSuccess(w, r, room)
	}
}

// HandleDeleteRoom deletes a room. Its members become roomless.
func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var customErr *errs.CustomError
		ok := deps.onLoop(w, r, func() {
			room, found := lookupRoom(deps.Cloak, id)
			if !found {
				customErr = errs.NewError(errs.ErrRoomNotFound)
				return
			}
			customErr = room.Delete()
		})
		if !ok {
			return
		}

		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Room deleted through admin API.", "room_id", id)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleMessageRoom sends an application message to every member of a room.
func HandleMessageRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

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
			found      bool
			recipients int
		)
		ok := deps.onLoop(w, r, func() {
			room, exists := lookupRoom(deps.Cloak, id)
			if !exists {
				return
			}
			found = true
			recipients = room.MemberCount()
			room.MessageMembers(input.Name, input.Data)
		})
		if !ok {
			return
		}

		if !found {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}
		resp.RespondSuccess(w, r, map[string]int{"recipients": recipients})
	}
}

// lookupRoom resolves a room id; "lobby" and the lobby's own id select the lobby.
func lookupRoom(c *cloak.Cloak, id string) (*cloak.Room, bool) {
	if id == "lobby" || id == c.Lobby().ID() {
		return c.Lobby(), true
	}
	return c.Room(id)
}
