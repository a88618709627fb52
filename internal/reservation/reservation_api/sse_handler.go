package reservation_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-reservation/internal/utils"
)

// StreamSeats streams the seat map of an event as Server-Sent Events: one
// "snapshot" with the current availability, then a "seat_status" per change.
// A client that fell behind and lost changes gets a fresh "snapshot".
func (h *Handler) StreamSeats(w http.ResponseWriter, r *http.Request) {
	eventID, err := int64Param(r, "eventId")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid event id", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	ctx := r.Context()
	// subscribe before the snapshot so no change between the two is lost
	sub := h.Events.Subscribe(ctx, eventID)

	snapshot, err := h.Service.GetAvailability(ctx, eventID)
	if err != nil {
		h.writeServiceError(w, "Seat lookup failed", err)
		return
	}

	// the server WriteTimeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to seat stream of event %d (%d clients)", eventID, h.Events.ClientCount(eventID)))

	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(evt)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize seat event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: seat_status\ndata: %s\n\n", jsonData)

			if sub.Lagged() {
				snapshot, err := h.Service.GetAvailability(ctx, eventID)
				if err != nil {
					h.Logger.Warn("SSE", fmt.Sprintf("Resync of event %d failed, closing stream: %v", eventID, err))
					return
				}
				h.Logger.Debug("SSE", fmt.Sprintf("Client of event %d lagged, resent snapshot", eventID))
				fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", snapshot)
			}
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from seat stream of event %d", eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
