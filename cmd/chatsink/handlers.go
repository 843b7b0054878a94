package main

import (
	"net/http"
	"strconv"

	"chatsink/internal/errors"
	"chatsink/internal/models"

	"github.com/gorilla/mux"
)

// handleInboundEvent accepts a normalized event from the inbound
// gateway. Accepted events are processed asynchronously; only
// validation failures surface to the caller.
func (s *Server) handleInboundEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event models.InboundEvent
		if err := decodeBody(r, &event); err != nil {
			s.writeError(w, r, err)
			return
		}

		if err := s.engine.Ingest(r.Context(), &event); err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	}
}

// handleSendMessage relays an outbound message to the configured
// transport gateway.
func (s *Server) handleSendMessage() http.HandlerFunc {
	type request struct {
		ChatID   string             `json:"chatId"`
		Type     models.MessageType `json:"type"`
		Content  string             `json:"content,omitempty"`
		Media    string             `json:"media,omitempty"`
		MimeType string             `json:"mimetype,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.ChatID == "" {
			s.writeError(w, r, errors.NewValidationError("chatId", "", "chat id is required"))
			return
		}

		if err := s.sender.Send(r.Context(), req.ChatID, req.Type, req.Content, req.Media, req.MimeType); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
	}
}

func (s *Server) handleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		snap, err := s.tracker.MarkRead(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleUpdateStatus() http.HandlerFunc {
	type request struct {
		Status      models.MessageStatus `json:"status"`
		ErrorDetail string               `json:"errorDetail,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		snap, err := s.tracker.UpdateStatus(r.Context(), id, req.Status, req.ErrorDetail)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleAddReaction() http.HandlerFunc {
	type request struct {
		Participant string `json:"participantId"`
		Token       string `json:"token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		snap, err := s.tracker.AddReaction(r.Context(), id, req.Participant, req.Token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleRemoveReaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		participant := mux.Vars(r)["participant"]

		snap, err := s.tracker.RemoveReaction(r.Context(), id, participant)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) handleCreateGroup() http.HandlerFunc {
	type request struct {
		Name         string   `json:"name"`
		Participants []string `json:"participants"`
		Creator      string   `json:"creator"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		chat, err := s.directory.CreateGroup(r.Context(), req.Name, req.Participants, req.Creator)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, chat)
	}
}

func (s *Server) handleAddParticipants() http.HandlerFunc {
	type request struct {
		Participants []string `json:"participants"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		chat, err := s.directory.AddParticipants(r.Context(), id, req.Participants)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, chat)
	}
}

func (s *Server) handleRemoveParticipants() http.HandlerFunc {
	type request struct {
		Participants []string `json:"participants"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.directory.RemoveParticipants(r.Context(), id, req.Participants)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleToggleMute() http.HandlerFunc {
	type request struct {
		Participant     string `json:"participantId"`
		Mute            bool   `json:"mute"`
		DurationMinutes int    `json:"durationMinutes,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		if err := s.directory.ToggleMute(r.Context(), id, req.Participant, req.Mute, req.DurationMinutes); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMarkChatRead() http.HandlerFunc {
	type request struct {
		Participant string `json:"participantId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var req request
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		if err := s.directory.MarkChatRead(r.Context(), id, req.Participant); err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("id", raw, "invalid numeric identifier")
	}
	return id, nil
}
