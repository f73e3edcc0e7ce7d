// Package extraction reads identity and salary data off document images by
// calling an Ollama-compatible vision model.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"profilegate/internal/profile/metrics"
	"profilegate/internal/profile/models"
	"profilegate/pkg/platform/circuit"
)

const (
	TaskIdentity = "identity"
	TaskSalary   = "salary"

	maxReplyBytes = 4 << 20
)

const identityPrompt = `Analyze this ID card image. Extract the following information and return it in a pure JSON format with keys:
- last_name
- first_name
- date_of_birth (YYYY-MM-DD format)

If a field is not visible, use null. Do not output markdown code blocks.`

const salaryPrompt = `Analyze this salary slip. Extract the 'Net Salary' or 'Net Pay' amount.
Return ONLY a JSON object with a single key "net_salary" containing the numeric value (float).
Example: {"net_salary": 2500.50}`

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
	Format string   `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client calls the generate endpoint of an Ollama server. It makes exactly
// one attempt per call and never retries.
type Client struct {
	url        string
	model      string
	httpClient *http.Client
	breaker    *circuit.Breaker
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a client for the generate endpoint at url using model.
func New(url, model string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("ocr")
	}
	return c
}

// ExtractIdentity reads last name, first name and date of birth off an ID
// document. Fields the model cannot read come back empty.
func (c *Client) ExtractIdentity(ctx context.Context, image string) (models.ExtractedIdentity, error) {
	reply, err := c.generate(ctx, TaskIdentity, identityPrompt, image)
	if err != nil {
		return models.ExtractedIdentity{}, err
	}
	identity, degraded := parseIdentity(reply)
	if degraded {
		c.metrics.IncrementExtractionDegraded(TaskIdentity)
		c.logger.WarnContext(ctx, "identity reply degraded", "reply_bytes", len(reply))
	}
	return identity, nil
}

// ExtractSalary reads the net salary off a salary document. An unreadable
// amount is 0.
func (c *Client) ExtractSalary(ctx context.Context, image string) (float64, error) {
	reply, err := c.generate(ctx, TaskSalary, salaryPrompt, image)
	if err != nil {
		return 0, err
	}
	salary, degraded := parseSalary(reply)
	if degraded {
		c.metrics.IncrementExtractionDegraded(TaskSalary)
		c.logger.WarnContext(ctx, "salary reply degraded", "reply_bytes", len(reply))
	}
	return salary, nil
}

// generate validates the image, sends one request and returns the model's
// response text.
func (c *Client) generate(ctx context.Context, task, prompt, image string) (string, error) {
	callID := uuid.NewString()
	start := time.Now()

	reply, err := c.call(ctx, task, prompt, image)

	result := "ok"
	if err != nil {
		result = string(CategoryOf(err))
		c.logger.ErrorContext(ctx, "extraction call failed",
			"call_id", callID,
			"task", task,
			"category", result,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	} else {
		c.logger.DebugContext(ctx, "extraction call completed",
			"call_id", callID,
			"task", task,
			"reply_bytes", len(reply),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
	c.metrics.IncrementExtractionCall(task, result)
	return reply, err
}

func (c *Client) call(ctx context.Context, task, prompt, image string) (string, error) {
	normalized, info, err := decodeImage(image)
	if err != nil {
		return "", &Error{Task: task, Category: CategoryBadImage, Err: err}
	}
	c.logger.DebugContext(ctx, "extraction image decoded",
		"task", task,
		"image_format", info.Format,
		"width", info.Width,
		"height", info.Height,
		"image_bytes", info.Bytes,
	)

	if !c.breaker.Allow() {
		return "", &Error{Task: task, Category: CategoryCircuitOpen}
	}

	reply, err := c.post(ctx, task, prompt, normalized)
	if err != nil {
		if CategoryOf(err).countsAgainstProvider() {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.logger.WarnContext(ctx, "extraction circuit opened", "breaker", c.breaker.Name())
			}
		}
		return "", err
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "extraction circuit closed", "breaker", c.breaker.Name())
	}
	return reply, nil
}

func (c *Client) post(ctx context.Context, task, prompt, image string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Images: []string{image},
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", &Error{Task: task, Category: CategoryInternal, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Task: task, Category: CategoryInternal, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Task: task, Category: transportCategory(err), Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.WarnContext(ctx, "extraction response body close failed", "error", cerr)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", &Error{Task: task, Category: transportCategory(err), Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode/100 != 2 {
		return "", &Error{Task: task, Category: CategoryProviderOutage, Err: fmt.Errorf("non-2xx status: %d", resp.StatusCode)}
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &Error{Task: task, Category: CategoryProviderOutage, Err: fmt.Errorf("decode response envelope: %w", err)}
	}
	return out.Response, nil
}

func transportCategory(err error) Category {
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CategoryInternal
	}
	return CategoryProviderOutage
}
