// Package location provides the rooms that dashboard devices are grouped by.
//
// Rooms are a flat, ordered list: the dashboard shows them in sort order and
// filters panels by the room a device declares. Devices may reference a room
// that does not exist yet; such devices only appear under "all rooms".
//
// The package provides a Repository interface with a SQLite implementation.
//
// # Thread Safety
//
// SQLiteRepository is safe for concurrent use from multiple goroutines
// (SQLite WAL mode + connection pooling).
package location
