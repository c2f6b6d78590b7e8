package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kichnu/iotdash/internal/infrastructure/database"
)

// Repository stores rooms.
type Repository interface {
	CreateRoom(ctx context.Context, room *Room) error
	ListRooms(ctx context.Context) ([]Room, error)
	GetRoom(ctx context.Context, id string) (*Room, error)
	UpdateRoom(ctx context.Context, room *Room) error
	DeleteRoom(ctx context.Context, id string) error
	CountRooms(ctx context.Context) (int, error)
}

// SQLiteRepository keeps rooms in the rooms table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const roomColumns = `SELECT id, name, sort_order, created_at, updated_at FROM rooms`

// CreateRoom validates and inserts a room. It fails with ErrRoomExists
// when the ID is taken.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	if err := ValidateRoom(room); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, sort_order) VALUES (?, ?, ?)`,
		room.ID, strings.TrimSpace(room.Name), room.SortOrder)
	switch {
	case database.IsUniqueViolation(err):
		return ErrRoomExists
	case err != nil:
		return fmt.Errorf("inserting room %s: %w", room.ID, err)
	}
	return nil
}

// ListRooms returns every room by sort order, then name.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx, roomColumns+` ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}

// GetRoom returns one room or ErrRoomNotFound.
func (r *SQLiteRepository) GetRoom(ctx context.Context, id string) (*Room, error) {
	rm, err := scanRoom(r.db.QueryRowContext(ctx, roomColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// UpdateRoom renames or reorders an existing room.
func (r *SQLiteRepository) UpdateRoom(ctx context.Context, room *Room) error {
	if err := ValidateRoom(room); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE rooms SET name = ?, sort_order = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now') WHERE id = ?`,
		strings.TrimSpace(room.Name), room.SortOrder, room.ID)
	if err != nil {
		return fmt.Errorf("updating room %s: %w", room.ID, err)
	}
	return database.RequireRow(res, ErrRoomNotFound)
}

// DeleteRoom removes a room. Devices that reference it keep the ID.
func (r *SQLiteRepository) DeleteRoom(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting room %s: %w", id, err)
	}
	return database.RequireRow(res, ErrRoomNotFound)
}

// CountRooms returns the number of rooms.
func (r *SQLiteRepository) CountRooms(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting rooms: %w", err)
	}
	return n, nil
}

func scanRoom(row interface{ Scan(...any) error }) (Room, error) {
	var (
		rm               Room
		created, updated string
	)
	if err := row.Scan(&rm.ID, &rm.Name, &rm.SortOrder, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Room{}, err
		}
		return Room{}, fmt.Errorf("scanning room: %w", err)
	}
	// Timestamps are written by SQLite; unparsable ones are left zero.
	rm.CreatedAt, _ = time.Parse(time.RFC3339, created)
	rm.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return rm, nil
}
