package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"writing-game-service/internal/domain"
)

type answerPayload struct {
	Text string `json:"text"`
}

type joinedPayload struct {
	PIN     string              `json:"pin"`
	Name    string              `json:"name"`
	Phase   domain.PlayerPhase  `json:"phase"`
	History []domain.Submission `json:"history"`
}

type gradedPayload struct {
	Submission domain.Submission   `json:"submission"`
	History    []domain.Submission `json:"history"`
}

// ServeStudent joins a student to a game and streams state; inbound "answer" messages are graded
// in the background so the socket keeps receiving state while a grade is pending.
func (h *WSHandler) ServeStudent(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	name := r.URL.Query().Get("name")
	if pin == "" || name == "" {
		http.Error(w, "missing pin or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Grading outlives the request context so a closing socket does not turn into a zero-score entry.
	ctx := context.WithoutCancel(r.Context())

	player, err := h.service.JoinGame(ctx, domain.JoinRequest{PIN: pin, Name: name})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Code: errorCode(err)}})
		return
	}

	updates, cancel, err := h.service.Subscribe(ctx, player.PIN())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error(), Code: errorCode(err)}})
		return
	}
	defer cancel()

	out := newOutbox(conn)
	stop := make(chan struct{})
	out.emit("joined", joinedPayload{
		PIN:     player.PIN(),
		Name:    player.Name(),
		Phase:   player.Phase(ctx),
		History: player.History(),
	})
	updatesDone := out.forward(updates, stop)

	var pending sync.WaitGroup
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.emit("error", errorPayload{Message: "invalid answer payload", Code: "validation"})
				continue
			}
			out.emit("submitting", answerPayload{Text: payload.Text})
			pending.Add(1)
			go func(text string) {
				defer pending.Done()
				sub, err := player.Submit(ctx, text)
				if err != nil {
					out.fail(err)
					return
				}
				out.emit("graded", gradedPayload{Submission: sub, History: player.History()})
			}(payload.Text)
		default:
			out.emit("error", errorPayload{Message: "unsupported message type"})
		}
	}

	pending.Wait()
	close(stop)
	<-updatesDone
	out.close()
}
