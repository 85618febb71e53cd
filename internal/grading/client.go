package grading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"writing-game-service/internal/domain"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	DefaultBaseURL   = "https://api.groq.com/openai/v1/"
	DefaultModel     = "llama-3.3-70b-versatile"
	DefaultMaxScore  = 3
	DefaultTimeout   = 20 * time.Second
	defaultMaxTokens = 300
	defaultTemp      = 0.7
)

// Fallback feedback returned instead of an error. Tests match on these.
const (
	FeedbackConnectivity = "Could not reach the grading service. Please try again!"
	FeedbackFormat       = "The grader answered in an unexpected format. Please try again!"
	FeedbackMissing      = "No feedback provided."
)

const systemPrompt = `You grade short written answers for an English class warm-up game.

Grade the student's answer using the question and the teacher's grading criteria.

IMPORTANT: reply with exactly this JSON object and nothing else:

{
  "score": <number>,
  "feedback": "<short, encouraging comment>"
}

Notes:
- Keep feedback upbeat; this is a warm-up.
- Always start with something the student did well.`

// Config configures the outbound completion call.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Temperature defaults to 0.7 when nil; a non-nil zero is sent as is.
	Temperature *float64
	MaxTokens   int64
	Timeout     time.Duration
	MaxRetries  int
	// MaxScore clamps awarded scores from above; zero disables the upper bound.
	MaxScore   int
	HTTPClient *http.Client
}

// Client turns (question, rubric, answer) into a Grade. It is stateless and safe for concurrent use.
type Client struct {
	api      openai.Client
	model    string
	temp     float64
	maxTok   int64
	timeout  time.Duration
	maxScore int
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temp := defaultTemp
	if cfg.Temperature != nil {
		temp = *cfg.Temperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxScore < 0 {
		cfg.MaxScore = 0
	}

	opts := []option.RequestOption{
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		api:      openai.NewClient(opts...),
		model:    cfg.Model,
		temp:     temp,
		maxTok:   cfg.MaxTokens,
		timeout:  cfg.Timeout,
		maxScore: cfg.MaxScore,
	}
}

// Grade never returns an error: transport and format failures become a zero score with an explanatory feedback.
func (c *Client) Grade(ctx context.Context, question, rubric, answer string) domain.Grade {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	completion, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt(question, rubric, answer)),
		},
		Temperature: openai.Float(c.temp),
		MaxTokens:   openai.Int(c.maxTok),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			log.Printf("grading request status %d", apiErr.StatusCode)
		} else {
			log.Printf("grading request failed: %v", err)
		}
		return domain.Grade{Score: 0, Feedback: FeedbackConnectivity, Status: domain.GradeTransportError}
	}
	if len(completion.Choices) == 0 {
		log.Printf("grading response has no choices")
		return domain.Grade{Score: 0, Feedback: FeedbackFormat, Status: domain.GradeFormatError}
	}

	grade, err := ParseGrade(completion.Choices[0].Message.Content, c.maxScore)
	if err != nil {
		log.Printf("grading response unparseable: %v", err)
		return domain.Grade{Score: 0, Feedback: FeedbackFormat, Status: domain.GradeFormatError}
	}
	return grade
}

func userPrompt(question, rubric, answer string) string {
	return fmt.Sprintf("QUESTION:\n%s\n\nTEACHER'S GRADING CRITERIA:\n%s\n\nSTUDENT ANSWER:\n%q\n\nGrade the answer and give feedback in the JSON format.",
		question, rubric, answer)
}

type gradePayload struct {
	Score    json.Number `json:"score"`
	Feedback string      `json:"feedback"`
}

// ParseGrade decodes the model's JSON content. A missing score counts as 0, missing feedback gets a placeholder.
// Scores are rounded and clamped to [0, maxScore] (no upper clamp when maxScore is 0).
func ParseGrade(content string, maxScore int) (domain.Grade, error) {
	var payload gradePayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return domain.Grade{}, fmt.Errorf("decode grade: %w", err)
	}

	score := 0
	if payload.Score != "" {
		f, err := payload.Score.Float64()
		if err != nil {
			return domain.Grade{}, fmt.Errorf("decode score: %w", err)
		}
		score = clamp(f, maxScore)
	}

	feedback := strings.TrimSpace(payload.Feedback)
	if feedback == "" {
		feedback = FeedbackMissing
	}
	return domain.Grade{Score: score, Feedback: feedback, Status: domain.GradeOK}, nil
}

// clamp bounds the score while it is still a float so huge values cannot overflow int.
func clamp(score float64, maxScore int) int {
	if score <= 0 {
		return 0
	}
	if maxScore > 0 && score >= float64(maxScore) {
		return maxScore
	}
	if score >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Round(score))
}
