package api

import (
	"net/http"

	"github.com/kichnu/iotdash/internal/location"
)

// handleListRooms returns all rooms ordered by sort order.
func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.rooms.ListRooms(r.Context())
	if err != nil {
		fail(w, ErrCodeInternal, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []location.Room{}
	}
	writeJSON(w, http.StatusOK, rooms)
}
