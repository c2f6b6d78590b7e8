package location

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned when creating a room with an ID that already exists.
	ErrRoomExists = errors.New("room already exists")

	// ErrInvalidName is returned when a room name is empty or too long.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidID is returned when a room ID is malformed.
	ErrInvalidID = errors.New("invalid room id")
)
