package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
)

// SlotInfo is the JSON view of slot metadata.
type SlotInfo struct {
	Name           string    `json:"name"`
	DisplayName    string    `json:"display_name,omitempty"`
	Map            string    `json:"map"`
	SaveDate       time.Time `json:"save_date"`
	PlayedSeconds  float64   `json:"played_seconds"`
	SlotPlayedSecs float64   `json:"slot_played_seconds"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
}

func NewSlotInfo(s *slot.Slot) SlotInfo {
	return SlotInfo{
		Name:           s.FileName,
		DisplayName:    s.DisplayName,
		Map:            s.Map,
		SaveDate:       s.Stats.SaveDate,
		PlayedSeconds:  s.Stats.PlayedTime.Seconds(),
		SlotPlayedSecs: s.Stats.SlotPlayedTime.Seconds(),
		Thumbnail:      s.ThumbnailPath,
	}
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	if s.slots == nil {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.config.SlotsTimeout)
	defer cancel()

	slots, err := s.slots.ListSlots(ctx)
	if err != nil {
		s.logger.Warn("Failed to list slots", log.Error(err))
		http.Error(w, "failed to list slots", http.StatusInternalServerError)
		return
	}
	out := make([]SlotInfo, 0, len(slots))
	for _, sl := range slots {
		out = append(out, NewSlotInfo(sl))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Debug("Failed to write slot list", log.Error(err))
	}
}
