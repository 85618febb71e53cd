package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"

	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes registers the teacher and student sockets plus the template listing.
func (h *WSHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/teacher", h.ServeTeacher)
	mux.HandleFunc("/ws/student", h.ServeStudent)
	mux.HandleFunc("/api/templates", h.ServeTemplates)
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// outbox serializes writes to one connection.
type outbox struct {
	conn       *websocket.Conn
	send       chan outboundMessage[any]
	writerDone chan struct{}
}

// Gorilla connections allow one concurrent writer, so every message goes through a single goroutine.
func newOutbox(conn *websocket.Conn) *outbox {
	o := &outbox{
		conn:       conn,
		send:       make(chan outboundMessage[any], 16),
		writerDone: make(chan struct{}),
	}
	go func() {
		defer close(o.writerDone)
		failed := false
		for msg := range o.send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				failed = true
			}
		}
	}()
	return o
}

func (o *outbox) emit(typ string, payload any) {
	o.send <- outboundMessage[any]{Type: typ, Payload: payload}
}

func (o *outbox) fail(err error) {
	o.emit("error", errorPayload{Message: err.Error(), Code: errorCode(err)})
}

// close must only run once every producer has stopped.
func (o *outbox) close() {
	close(o.send)
	<-o.writerDone
}

// forward pipes state updates into the outbox until updates closes or stop fires.
func (o *outbox) forward(updates <-chan domain.GameState, stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case o.send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()
	return done
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionEnded):
		return "ended"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrSubmissionInFlight):
		return "busy"
	case errors.Is(err, domain.ErrNoQuestion):
		return "no_question"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrTemplateNotFound):
		return "template_not_found"
	default:
		return "internal"
	}
}

// ServeTemplates lists question templates as JSON.
func (h *WSHandler) ServeTemplates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	templates, err := h.service.Templates(r.Context())
	if err != nil {
		log.Printf("list templates: %v", err)
		http.Error(w, "could not load templates", http.StatusInternalServerError)
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(templates)
}
