package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kichnu/iotdash/internal/infrastructure/database"
)

// Repository persists device descriptors.
type Repository interface {
	// GetByID returns ErrDeviceNotFound for an unknown ID.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List returns every device in catalogue order.
	List(ctx context.Context) ([]Device, error)
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)

	// Create appends a device to the catalogue or fails with ErrDeviceExists.
	Create(ctx context.Context, device *Device) error

	// Update and Delete fail with ErrDeviceNotFound for an unknown ID.
	Update(ctx context.Context, device *Device) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository stores devices in the devices table. Identity and
// filter columns are kept individually next to the full JSON descriptor;
// a device keeps its catalogue position across updates.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `SELECT id, name, type, room_id, panel, descriptor, created_at, updated_at FROM devices`

// row is the column form of a Device.
type row struct {
	id, name, kind, panel, descriptor string
	room                              sql.NullString
	created, updated                  string
}

func toRow(d *Device) (row, error) {
	descriptor, err := json.Marshal(d)
	if err != nil {
		return row{}, fmt.Errorf("encoding descriptor %s: %w", d.ID, err)
	}
	return row{
		id:         d.ID,
		name:       d.Name,
		kind:       d.Type,
		panel:      string(d.Panel),
		descriptor: string(descriptor),
		room:       sql.NullString{String: d.Room, Valid: d.Room != ""},
		created:    d.CreatedAt.UTC().Format(time.RFC3339),
		updated:    d.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// device decodes the descriptor and lets the columns override it.
func (r row) device() (*Device, error) {
	var d Device
	if r.descriptor != "" {
		if err := json.Unmarshal([]byte(r.descriptor), &d); err != nil {
			return nil, fmt.Errorf("decoding descriptor %s: %w", r.id, err)
		}
	}
	d.ID, d.Name, d.Type, d.Room, d.Panel = r.id, r.name, r.kind, r.room.String, PanelKind(r.panel)

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339, r.created); err != nil {
		return nil, fmt.Errorf("device %s created_at: %w", r.id, err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, r.updated); err != nil {
		return nil, fmt.Errorf("device %s updated_at: %w", r.id, err)
	}
	return &d, nil
}

func scanDevice(s interface{ Scan(...any) error }) (*Device, error) {
	var r row
	if err := s.Scan(&r.id, &r.name, &r.kind, &r.room, &r.panel, &r.descriptor, &r.created, &r.updated); err != nil {
		return nil, err
	}
	return r.device()
}

// GetByID returns one device.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, deviceColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading device %s: %w", id, err)
	}
	return d, nil
}

// List returns every device in catalogue order.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.query(ctx, deviceColumns+` ORDER BY position, id`)
}

// ListByRoom returns the devices of one room in catalogue order.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	return r.query(ctx, deviceColumns+` WHERE room_id = ? ORDER BY position, id`, roomID)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create appends the device after the last catalogue position and stamps
// its timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC().Truncate(time.Second)
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	rw, err := toRow(device)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, type, room_id, panel, descriptor, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM devices), ?, ?)`,
		rw.id, rw.name, rw.kind, rw.room, rw.panel, rw.descriptor, rw.created, rw.updated)
	switch {
	case database.IsUniqueViolation(err):
		return ErrDeviceExists
	case err != nil:
		return fmt.Errorf("inserting device %s: %w", device.ID, err)
	}
	return nil
}

// Update rewrites a device in place.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	device.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	rw, err := toRow(device)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, type = ?, room_id = ?, panel = ?, descriptor = ?, updated_at = ?
		WHERE id = ?`,
		rw.name, rw.kind, rw.room, rw.panel, rw.descriptor, rw.updated, rw.id)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", device.ID, err)
	}
	return database.RequireRow(res, ErrDeviceNotFound)
}

// Delete removes a device.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}
	return database.RequireRow(res, ErrDeviceNotFound)
}
