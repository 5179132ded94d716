/*
Package errs provides custom error types and application-level error code constants.

These error codes identify core invariant failures (room capacity, lobby deletion, unknown
identities) both inside the orchestrator and in responses sent to clients and admin callers.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room Errors
const (
	// ErrRoomNotFound indicates that the room does not exist or was already deleted.
	ErrRoomNotFound = 2103

	// ErrRoomIsFull indicates that the room has reached its capacity.
	ErrRoomIsFull = 2104

	// ErrAlreadyInRoom indicates that the user is already a member of the room.
	ErrAlreadyInRoom = 2105

	// ErrLobbyNotDeletable indicates an attempt to delete the lobby.
	ErrLobbyNotDeletable = 2106
)

// 3xxx: User and Session Errors
const (
	// ErrSessionKicked indicates that the server closed the session (replaced or deleted).
	ErrSessionKicked = 3004

	// ErrUserNotFound indicates that the user does not exist or was already deleted.
	ErrUserNotFound = 3005

	// ErrInvalidResume indicates that a resume request named an unknown user.
	ErrInvalidResume = 3006

	// ErrUnauthorized indicates a missing or invalid admin token.
	ErrUnauthorized = 3010
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrShuttingDown indicates the orchestrator is no longer accepting work.
	ErrShuttingDown = 5001
)
