/*
Package randx provides identifier generation for users, rooms, and transport sessions.

All identifiers are UUID v4 strings. Session identifiers are prefixed so they are never
mistaken for user identifiers in logs or resume requests.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// SessionIDPrefix marks identifiers minted for transport sessions.
const SessionIDPrefix = "sess_"

// ID generates a standard UUID v4 string. It is the default identity generator
// for users and rooms.
func ID() string {
	return uuid.New().String()
}

// SessionID generates an identifier for a transport session.
func SessionID() string {
	return SessionIDPrefix + uuid.New().String()
}

// IsValidID reports whether id is a well-formed UUID string.
func IsValidID(id string) bool {
	if id == "" || strings.HasPrefix(id, SessionIDPrefix) {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
