/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room Errors
	ErrRoomNotFound:      {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrRoomIsFull:        {Code: ErrRoomIsFull, Message: "This room is full."},
	ErrAlreadyInRoom:     {Code: ErrAlreadyInRoom, Message: "User is already in this room."},
	ErrLobbyNotDeletable: {Code: ErrLobbyNotDeletable, Message: "The lobby cannot be deleted.", Status: http.StatusConflict},

	// 3xxx: User and Session Errors
	ErrSessionKicked: {Code: ErrSessionKicked, Message: "Session closed by the server."},
	ErrUserNotFound:  {Code: ErrUserNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrInvalidResume: {Code: ErrInvalidResume, Message: "Unknown user, cannot resume session."},
	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Admin token required.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:      {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrShuttingDown: {Code: ErrShuttingDown, Message: "Server is shutting down.", Status: http.StatusServiceUnavailable},
}
