package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kichnu/iotdash/internal/location"
)

// Catalogue file format (devices.json):
//
//	{
//	  "devices": [{"id": "kitchen_light", "name": "Kitchen", "type": "light", ...}],
//	  "rooms":   [{"id": "kitchen", "name": "Kitchen"}]
//	}
type SeedFile struct {
	Devices []Device        `json:"devices"`
	Rooms   []location.Room `json:"rooms"`
}

// RoomStore is the subset of the room repository used by seeding.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *location.Room) error
	CountRooms(ctx context.Context) (int, error)
}

// LoadSeedFile reads a devices.json catalogue.
//
// Returns:
//   - *SeedFile: Parsed catalogue
//   - error: os error if the file cannot be read, ErrInvalidCatalogue if it
//     is not valid JSON
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCatalogue, path, err)
	}
	return &seed, nil
}

// SeedResult reports what an import created and skipped.
type SeedResult struct {
	DevicesCreated int
	RoomsCreated   int
	Skipped        []error
}

// Seed imports a catalogue into empty stores. Rooms are imported only when
// no room exists; devices only when the registry is empty. Invalid or
// duplicate entries are skipped and reported rather than aborting the
// import.
func Seed(ctx context.Context, seed *SeedFile, registry *Registry, rooms RoomStore) (SeedResult, error) {
	var result SeedResult

	roomCount, err := rooms.CountRooms(ctx)
	if err != nil {
		return result, err
	}
	if roomCount == 0 {
		for i := range seed.Rooms {
			room := seed.Rooms[i]
			if room.SortOrder == 0 {
				room.SortOrder = i
			}
			if err := rooms.CreateRoom(ctx, &room); err != nil {
				result.Skipped = append(result.Skipped, fmt.Errorf("room %q: %w", room.ID, err))
				continue
			}
			result.RoomsCreated++
		}
	}

	if registry.GetDeviceCount() > 0 {
		return result, nil
	}
	for i := range seed.Devices {
		d := seed.Devices[i].DeepCopy()
		if err := registry.CreateDevice(ctx, d); err != nil {
			if errors.Is(err, ErrDeviceExists) || errors.Is(err, ErrInvalidDevice) {
				result.Skipped = append(result.Skipped, fmt.Errorf("device %q: %w", d.ID, err))
				continue
			}
			return result, err
		}
		result.DevicesCreated++
	}

	return result, nil
}
