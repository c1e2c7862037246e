package trivia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// OpenTDBClient fetches question batches from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenTDBClient(baseURL string, httpClient *http.Client) *OpenTDBClient {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type opentdbResult struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type opentdbResponse struct {
	ResponseCode int             `json:"response_code"`
	Results      []opentdbResult `json:"results"`
}

// Fetch issues one GET against /api.php. Network and decode failures come
// back as BatchTransportError with the underlying error; an upstream nonzero
// response code or an empty result list is BatchNoQuestions. The caller is
// responsible for the 50-question ceiling before any request is made.
func (c *OpenTDBClient) Fetch(ctx context.Context, count int, difficulty string) (Batch, error) {
	values := url.Values{}
	values.Set("amount", strconv.Itoa(count))
	if difficulty != "" && difficulty != DifficultyAny {
		values.Set("difficulty", difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return Batch{Status: BatchTransportError}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Batch{Status: BatchTransportError}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Batch{Status: BatchTransportError}, fmt.Errorf("opentdb non-200: %d", resp.StatusCode)
	}

	var payload opentdbResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Batch{Status: BatchTransportError}, err
	}
	if payload.ResponseCode != 0 || len(payload.Results) == 0 {
		return Batch{Status: BatchNoQuestions}, nil
	}

	questions := make([]Question, 0, len(payload.Results))
	for _, r := range payload.Results {
		questions = append(questions, Question{
			Category:         r.Category,
			Type:             ParseQuestionType(r.Type),
			Difficulty:       r.Difficulty,
			Prompt:           r.Question,
			CorrectAnswer:    r.CorrectAnswer,
			IncorrectAnswers: r.IncorrectAnswers,
		})
	}
	return Batch{Status: BatchOk, Questions: questions}, nil
}
