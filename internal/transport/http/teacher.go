package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"
)

type templatePayload struct {
	ID string `json:"id"`
}

type testPayload struct {
	Answer string `json:"answer"`
}

type phasePayload struct {
	Phase domain.HostPhase    `json:"phase"`
	PIN   string              `json:"pin,omitempty"`
	Draft domain.Question     `json:"draft"`
	Tests []domain.TestResult `json:"tests"`
}

type publishedPayload struct {
	PIN           string `json:"pin"`
	QuestionIndex int    `json:"questionIndex"`
}

// ServeTeacher runs one teacher's game over a socket. Dropping the socket ends the game.
func (h *WSHandler) ServeTeacher(w http.ResponseWriter, r *http.Request) {
	host, err := h.service.OpenHost(r.URL.Query().Get("passphrase"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := context.WithoutCancel(r.Context())
	out := newOutbox(conn)
	stop := make(chan struct{})
	var (
		updatesDone <-chan struct{}
		cancelSub   func()
	)
	out.emit("phase", hostPhase(host))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var actionErr error
		switch inbound.Type {
		case "draft":
			var q domain.Question
			if actionErr = decodePayload(inbound.Payload, &q); actionErr == nil {
				actionErr = host.EditDraft(q)
			}
		case "template":
			var payload templatePayload
			if actionErr = decodePayload(inbound.Payload, &payload); actionErr == nil {
				_, actionErr = host.LoadTemplate(ctx, payload.ID)
			}
		case "test":
			var payload testPayload
			if actionErr = decodePayload(inbound.Payload, &payload); actionErr == nil {
				var result domain.TestResult
				if result, actionErr = host.TestAnswer(ctx, payload.Answer); actionErr == nil {
					out.emit("testResult", result)
				}
			}
		case "publish":
			var state domain.GameState
			if state, actionErr = host.Publish(ctx); actionErr == nil {
				out.emit("published", publishedPayload{PIN: state.PIN, QuestionIndex: state.QuestionIndex})
				if cancelSub == nil {
					updates, cancel, err := h.service.Subscribe(ctx, state.PIN)
					if err != nil {
						actionErr = err
						break
					}
					cancelSub = cancel
					updatesDone = out.forward(updates, stop)
				}
			}
		case "next":
			actionErr = host.NextQuestion()
		case "end":
			_, actionErr = host.End(ctx)
		default:
			out.emit("error", errorPayload{Message: "unsupported message type"})
			continue
		}

		if actionErr != nil {
			out.fail(actionErr)
			continue
		}
		out.emit("phase", hostPhase(host))
	}

	endAbandoned(ctx, host)
	close(stop)
	if updatesDone != nil {
		<-updatesDone
	}
	if cancelSub != nil {
		cancelSub()
	}
	out.close()
}

func hostPhase(host *app.Host) phasePayload {
	tests := host.TestResults()
	if tests == nil {
		tests = []domain.TestResult{}
	}
	return phasePayload{
		Phase: host.Phase(),
		PIN:   host.PIN(),
		Draft: host.Draft(),
		Tests: tests,
	}
}

func endAbandoned(ctx context.Context, host *app.Host) {
	if host.Phase() == domain.PhaseTerminated {
		return
	}
	if _, err := host.End(ctx); err != nil && !errors.Is(err, domain.ErrSessionEnded) {
		log.Printf("end abandoned game %s: %v", host.PIN(), err)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(domain.ErrValidation, err)
	}
	return nil
}
