package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/solace/internal/completion"
	"github.com/nadzzz/solace/internal/listen"
	"github.com/nadzzz/solace/internal/message"
	"github.com/nadzzz/solace/internal/session"
	"github.com/nadzzz/solace/internal/store"
)

// ConversationResponse is a conversation as shown to the browser. The system
// prompt is not included.
type ConversationResponse struct {
	ID        string            `json:"id"`
	Greeting  string            `json:"greeting,omitempty"`
	Messages  []message.Message `json:"messages"`
	Ended     bool              `json:"ended"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// MessageRequest is a typed user utterance.
type MessageRequest struct {
	Text string `json:"text" example:"I feel anxious today"`
}

// TurnResponse reports the result of one utterance.
type TurnResponse struct {
	Outcome    string  `json:"outcome" enums:"skipped,replied,ended"`
	Transcript string  `json:"transcript,omitempty"`
	Reply      string  `json:"reply,omitempty"`
	Error      string  `json:"error,omitempty"` // failure kind behind an apology
	LatencyMS  float64 `json:"latency_ms,omitempty"`
	Ended      bool    `json:"ended"`
}

// handleCreate starts a conversation.
//
//	@Summary		Start a conversation
//	@Description	Creates a conversation holding only the system prompt and returns the greeting.
//	@Tags			conversations
//	@Produce		json
//	@Success		201	{object}	ConversationResponse
//	@Failure		500	{string}	string	"Store failure"
//	@Router			/api/conversations [post]
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	ctx := context.WithoutCancel(r.Context())
	sess := session.New(s.cfg, s.client, s.speaker, session.WithID(id), session.WithObserver(s.observer))
	greeting := sess.Greet(ctx)

	now := time.Now().UTC()
	conv := &store.Conversation{
		ID:        id,
		History:   sess.History(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, conv); err != nil {
		slog.Error("saving conversation", "conversation_id", id, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	resp := toResponse(conv)
	resp.Greeting = greeting
	writeJSON(w, http.StatusCreated, resp)
}

// handleGet returns a conversation.
//
//	@Summary	Get a conversation
//	@Tags		conversations
//	@Produce	json
//	@Param		id	path		string	true	"Conversation id"
//	@Success	200	{object}	ConversationResponse
//	@Failure	404	{string}	string	"Unknown or expired conversation"
//	@Router		/api/conversations/{id} [get]
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toResponse(conv))
}

// handleDelete forgets a conversation.
//
//	@Summary	Delete a conversation
//	@Tags		conversations
//	@Param		id	path	string	true	"Conversation id"
//	@Success	204
//	@Failure	404	{string}	string	"Unknown or expired conversation"
//	@Router		/api/conversations/{id} [delete]
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	unlock := s.lock(id)
	defer unlock()

	err := s.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	case err != nil:
		slog.Error("deleting conversation", "conversation_id", id, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMessage sends a typed message.
//
//	@Summary		Send a message
//	@Description	Runs one turn of the conversation with a typed utterance. Completion failures
//	@Description	are answered with an apology, never with an error status.
//	@Tags			conversations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Conversation id"
//	@Param			message	body		MessageRequest	true	"User utterance"
//	@Success		200		{object}	TurnResponse
//	@Failure		400		{string}	string	"Invalid request body"
//	@Failure		404		{string}	string	"Unknown or expired conversation"
//	@Failure		409		{string}	string	"Conversation has ended"
//	@Router			/api/conversations/{id}/messages [post]
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.turn(w, r, func(ctx context.Context, sess *session.Session) session.Turn {
		return sess.Heard(ctx, req.Text, nil)
	})
}

// handleAudio sends a recorded utterance.
//
//	@Summary		Send a recording
//	@Description	Transcribes the raw audio body and runs one turn with the transcript.
//	@Description	Unintelligible audio or an unavailable recognizer is answered with an apology.
//	@Tags			conversations
//	@Accept			audio/wav
//	@Accept			audio/webm
//	@Accept			audio/ogg
//	@Produce		json
//	@Param			id	path		string	true	"Conversation id"
//	@Success		200	{object}	TurnResponse
//	@Failure		400	{string}	string	"Unreadable body"
//	@Failure		404	{string}	string	"Unknown or expired conversation"
//	@Failure		409	{string}	string	"Conversation has ended"
//	@Failure		503	{string}	string	"No speech recognizer configured"
//	@Router			/api/conversations/{id}/audio [post]
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if s.recognizer == nil {
		http.Error(w, "speech recognition is not configured", http.StatusServiceUnavailable)
		return
	}
	audio, err := io.ReadAll(io.LimitReader(r.Body, maxAudioBytes))
	if err != nil {
		http.Error(w, "reading audio: "+err.Error(), http.StatusBadRequest)
		return
	}
	contentType := r.Header.Get("Content-Type")

	s.turn(w, r, func(ctx context.Context, sess *session.Session) session.Turn {
		text, err := s.recognizer.Recognize(ctx, audio, contentType)
		if err != nil {
			return sess.Heard(ctx, "", listen.Classify(err))
		}
		return sess.Heard(ctx, text, nil)
	})
}

// handleRegenerate replaces the last reply.
//
//	@Summary		Regenerate the last reply
//	@Description	Drops the last assistant reply and asks the model again.
//	@Tags			conversations
//	@Produce		json
//	@Param			id	path		string	true	"Conversation id"
//	@Success		200	{object}	TurnResponse
//	@Failure		404	{string}	string	"Unknown or expired conversation"
//	@Failure		409	{string}	string	"Conversation has ended"
//	@Router			/api/conversations/{id}/regenerate [post]
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	s.turn(w, r, func(ctx context.Context, sess *session.Session) session.Turn {
		return sess.Regenerate(ctx)
	})
}

// turn rebuilds the conversation's session, runs fn and saves the result.
// The turn outlives a disconnecting client: an in-flight completion is never
// cancelled and its reply is still saved.
func (s *Server) turn(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) session.Turn) {
	id := r.PathValue("id")
	unlock := s.lock(id)
	defer unlock()
	ctx := context.WithoutCancel(r.Context())

	conv, ok := s.load(w, r)
	if !ok {
		return
	}
	if conv.Ended {
		http.Error(w, "conversation has ended", http.StatusConflict)
		return
	}

	history, err := message.Restore(conv.History)
	if err != nil {
		slog.Error("corrupt conversation", "conversation_id", id, "error", err)
		http.Error(w, "corrupt conversation", http.StatusInternalServerError)
		return
	}

	sess := session.New(s.cfg, s.client, s.speaker,
		session.WithID(id),
		session.WithHistory(history),
		session.WithObserver(s.observer))

	t := fn(ctx, sess)

	conv.History = sess.History()
	conv.Ended = sess.Terminated()
	conv.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, conv); err != nil {
		slog.Error("saving conversation", "conversation_id", id, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toTurnResponse(t, conv.Ended))
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) (*store.Conversation, bool) {
	id := r.PathValue("id")
	conv, err := s.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "conversation not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		slog.Error("loading conversation", "conversation_id", id, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return nil, false
	}
	return conv, true
}

func toResponse(c *store.Conversation) ConversationResponse {
	visible := make([]message.Message, 0, len(c.History))
	for _, m := range c.History {
		if m.Role != message.RoleSystem {
			visible = append(visible, m)
		}
	}
	return ConversationResponse{
		ID:        c.ID,
		Messages:  visible,
		Ended:     c.Ended,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toTurnResponse(t session.Turn, ended bool) TurnResponse {
	resp := TurnResponse{
		Outcome:    t.Outcome.String(),
		Transcript: t.Transcript,
		Reply:      t.Reply,
		LatencyMS:  float64(t.Latency.Microseconds()) / 1000,
		Ended:      ended,
	}
	if t.Err != nil {
		resp.Error = failureKind(t.Err)
	}
	return resp
}

// failureKind names the failure behind an apology without exposing the raw error.
func failureKind(err error) string {
	var le *listen.Error
	if errors.As(err, &le) {
		return le.Kind.String()
	}
	if completion.KindOf(err) == completion.KindModel {
		return "model_error"
	}
	return "unreachable"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
