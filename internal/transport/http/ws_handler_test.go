package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"
	"writing-game-service/internal/infra/memory"

	"github.com/gorilla/websocket"
)

type fixedGrader struct {
	grade domain.Grade
}

func (g fixedGrader) Grade(context.Context, string, string, string) domain.Grade {
	return g.grade
}

func TestWebSocketGameFlow(t *testing.T) {
	server, _ := newTestServer(t, nil)
	defer server.Close()

	teacher := dial(t, server, "/ws/teacher")
	defer teacher.Close()
	readUntil(t, teacher, "phase")

	send(t, teacher, "draft", map[string]any{
		"prompt":    `Paraphrase: "have effect on teenagers"`,
		"rubric":    "Score 0-3",
		"timeLimit": 5,
	})
	readUntil(t, teacher, "phase")

	send(t, teacher, "test", map[string]any{"answer": "influence teenagers"})
	var trial domain.TestResult
	decode(t, readUntil(t, teacher, "testResult"), &trial)
	if trial.Grade.Score != 2 {
		t.Fatalf("expected trial score 2, got %+v", trial)
	}

	send(t, teacher, "publish", nil)
	var published publishedPayload
	decode(t, readUntil(t, teacher, "published"), &published)
	if len(published.PIN) != 4 || published.QuestionIndex != 1 {
		t.Fatalf("unexpected publish payload %+v", published)
	}

	student := dial(t, server, "/ws/student?pin="+published.PIN+"&name=Anna")
	defer student.Close()
	var joined joinedPayload
	decode(t, readUntil(t, student, "joined"), &joined)
	if joined.Name != "Anna" || joined.Phase != domain.PlayerAnswering {
		t.Fatalf("unexpected joined payload %+v", joined)
	}

	send(t, student, "answer", map[string]any{"text": "influence teenagers"})
	var result gradedPayload
	decode(t, readUntil(t, student, "graded"), &result)
	if result.Submission.Score != 2 || result.Submission.QuestionIndex != 1 || len(result.History) != 1 {
		t.Fatalf("unexpected graded payload %+v", result)
	}

	// Teacher leaderboard reflects the submission.
	for {
		var state domain.GameState
		decode(t, readUntil(t, teacher, "state"), &state)
		if len(state.Leaderboard) == 1 && state.Leaderboard[0].TotalScore == 2 {
			break
		}
	}

	send(t, teacher, "end", nil)
	for {
		var state domain.GameState
		decode(t, readUntil(t, student, "state"), &state)
		if !state.Active {
			break
		}
	}
}

func TestWebSocketStudentUnknownGame(t *testing.T) {
	server, _ := newTestServer(t, nil)
	defer server.Close()

	student := dial(t, server, "/ws/student?pin=1234&name=Anna")
	defer student.Close()
	var payload errorPayload
	decode(t, readUntil(t, student, "error"), &payload)
	if payload.Code != "not_found" {
		t.Fatalf("expected not_found, got %+v", payload)
	}
}

func TestWebSocketTeacherGate(t *testing.T) {
	gate, err := app.NewTeacherGate("lime2024", "")
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	server, _ := newTestServer(t, gate)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/teacher?passphrase=wrong"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}

	conn := dial(t, server, "/ws/teacher?passphrase=lime2024")
	defer conn.Close()
	readUntil(t, conn, "phase")
}

func TestTemplatesEndpoint(t *testing.T) {
	server, _ := newTestServer(t, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/templates")
	if err != nil {
		t.Fatalf("get templates: %v", err)
	}
	defer resp.Body.Close()
	var templates []domain.Template
	if err := json.NewDecoder(resp.Body).Decode(&templates); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(templates) != 1 || templates[0].Name != "Synonym Hunt" {
		t.Fatalf("unexpected templates %+v", templates)
	}
}

func newTestServer(t *testing.T, gate *app.TeacherGate) (*httptest.Server, *app.GameService) {
	t.Helper()
	templates := memory.NewTemplateRepository(memory.NewStaticTemplateLoader(memory.BuiltinTemplates()), time.Minute)
	grader := fixedGrader{grade: domain.Grade{Score: 2, Feedback: "Nice", Status: domain.GradeOK}}
	service := app.NewGameService(app.NewGameStore(memory.NewSessionStore()), grader, templates, gate)

	mux := http.NewServeMux()
	NewWSHandler(service).Routes(mux)
	return httptest.NewServer(mux), service
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readUntil skips messages until one of type expect arrives and returns its payload.
func readUntil(t *testing.T, conn *websocket.Conn, expect string) json.RawMessage {
	t.Helper()
	for i := 0; i < 50; i++ {
		var msg inboundMessage
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", expect, err)
		}
		if msg.Type == expect {
			return msg.Payload
		}
		if msg.Type == "error" && expect != "error" {
			t.Fatalf("unexpected error waiting for %s: %s", expect, msg.Payload)
		}
	}
	t.Fatalf("no %s message received", expect)
	return nil
}

func decode(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
}
