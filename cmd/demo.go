package main

import (
	"encoding/json"
	"strings"

	"cloak/internal/app/cloak"
	"cloak/internal/pkg/errs"
	"cloak/internal/pkg/logx"
)

const maxChatLength = 500

type chatInput struct {
	Text string `json:"text"`
}

type chatOutput struct {
	From string `json:"from"`
	Name string `json:"name"`
	Text string `json:"text"`
}

type nameInput struct {
	Name string `json:"name"`
}

type joinInput struct {
	ID string `json:"id"`
}

// newOrchestrator wires the stock message handlers: chat relays text to the sender's
// room (or the lobby), setName renames the sender, joinRoom and leaveRoom move it.
func newOrchestrator(cfg cloak.Config) *cloak.Cloak {
	var c *cloak.Cloak

	c = cloak.New(cfg, cloak.Options{
		Messages: map[string]cloak.MessageHandler{
			"chat": func(u *cloak.User, payload json.RawMessage) error {
				if u == nil {
					return nil
				}
				var in chatInput
				if err := json.Unmarshal(payload, &in); err != nil {
					return err
				}
				text := strings.TrimSpace(in.Text)
				if text == "" || len(text) > maxChatLength {
					return errs.NewError(errs.ErrInvalidParams)
				}

				room := u.Room()
				if room == nil {
					room = c.Lobby()
				}
				room.MessageMembers("chat", chatOutput{From: u.ID(), Name: u.Name(), Text: text})
				return nil
			},

			"setName": func(u *cloak.User, payload json.RawMessage) error {
				if u == nil {
					return nil
				}
				var in nameInput
				if err := json.Unmarshal(payload, &in); err != nil {
					return err
				}
				if name := strings.TrimSpace(in.Name); name != "" {
					u.SetName(name)
				}
				return nil
			},

			"joinRoom": func(u *cloak.User, payload json.RawMessage) error {
				if u == nil {
					return nil
				}
				var in joinInput
				if err := json.Unmarshal(payload, &in); err != nil {
					return err
				}
				room, ok := c.Room(in.ID)
				if !ok {
					return errs.NewError(errs.ErrRoomNotFound)
				}
				return u.JoinRoom(room)
			},

			"leaveRoom": func(u *cloak.User, _ json.RawMessage) error {
				if u == nil {
					return nil
				}
				u.LeaveRoom()
				if cfg.AutoJoinLobby {
					if err := c.Lobby().AddMember(u); err != nil {
						return err
					}
				}
				return nil
			},
		},

		Sessions: cloak.SessionHooks{
			Begin: func(u *cloak.User) {
				logx.Debug("Demo user began.", "user_id", u.ID())
			},
		},
	})

	return c
}
