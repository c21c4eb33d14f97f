package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/studypulse/arena-service/internal/errors"
	"github.com/studypulse/arena-service/internal/models"
)

// Client calls the LLM gateway that generates trivia questions, exam sections
// and speaking evaluations. All failures come back as *apperrors.CollaboratorError
// with rate-limiting (429) and quota exhaustion (402) kept distinct so callers
// can present them as separate, actionable conditions.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

// WithHTTPClient is test-only.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// ===== REQUEST / RESPONSE SHAPES =====

type QuizRequest struct {
	Category      string `json:"category"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
}

type GeneratedQuizQuestion struct {
	QuestionText    string                  `json:"question_text"`
	Options         []models.QuestionOption `json:"options"`
	CorrectOptionID string                  `json:"correct_option_id"`
	Points          int                     `json:"points"`
	Explanation     string                  `json:"explanation"`
}

type quizResponse struct {
	Questions []GeneratedQuizQuestion `json:"questions"`
}

type ExamSectionRequest struct {
	ExamType      string `json:"examType"`
	Section       string `json:"section"`
	Difficulty    string `json:"difficulty"`
	QuestionCount int    `json:"questionCount"`
}

type GeneratedExamQuestion struct {
	QuestionText  string                  `json:"question_text"`
	QuestionType  models.QuestionKind     `json:"question_type"`
	Options       []models.QuestionOption `json:"options,omitempty"`
	CorrectAnswer string                  `json:"correct_answer,omitempty"`
	Points        int                     `json:"points"`
	Explanation   string                  `json:"explanation,omitempty"`
	AudioContext  string                  `json:"audio_context,omitempty"`
	Passage       string                  `json:"passage,omitempty"`
}

type examSectionResponse struct {
	Questions []GeneratedExamQuestion `json:"questions"`
}

type SpeakingRequest struct {
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt"`
	ExamType   string `json:"examType"`
}

type SpeakingEvaluation struct {
	OverallScore           json.RawMessage    `json:"overall_score"` // band number or CEFR string
	CriteriaScores         map[string]float64 `json:"criteria_scores"`
	Strengths              []string           `json:"strengths"`
	Improvements           []string           `json:"improvements"`
	SampleCorrections      []string           `json:"sample_corrections"`
	DetailedFeedback       string             `json:"detailed_feedback"`
	EstimatedTimeToImprove string             `json:"estimated_time_to_improve"`
}

type speakingResponse struct {
	Evaluation SpeakingEvaluation `json:"evaluation"`
}

// ===== CALLS =====

func (c *Client) GenerateQuiz(ctx context.Context, req QuizRequest) ([]GeneratedQuizQuestion, error) {
	var resp quizResponse
	if err := c.post(ctx, "/generate-quiz", req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

func (c *Client) GenerateExamSection(ctx context.Context, req ExamSectionRequest) ([]GeneratedExamQuestion, error) {
	var resp examSectionResponse
	if err := c.post(ctx, "/generate-exam-questions", req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

func (c *Client) EvaluateSpeaking(ctx context.Context, req SpeakingRequest) (*SpeakingEvaluation, error) {
	var resp speakingResponse
	if err := c.post(ctx, "/evaluate-speaking", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Evaluation, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return &apperrors.CollaboratorError{Collaborator: "ai-gateway", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("AI gateway returned non-2xx",
			"path", path,
			"status", resp.StatusCode,
			"body", string(raw))
		return &apperrors.CollaboratorError{
			Collaborator:   "ai-gateway",
			StatusCode:     resp.StatusCode,
			RateLimited:    resp.StatusCode == http.StatusTooManyRequests,
			QuotaExhausted: resp.StatusCode == http.StatusPaymentRequired,
			Err:            fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperrors.CollaboratorError{
			Collaborator: "ai-gateway",
			Err:          fmt.Errorf("failed to decode response: %w", err),
		}
	}
	return nil
}
