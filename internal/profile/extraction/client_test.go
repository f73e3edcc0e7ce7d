package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilegate/internal/profile/metrics"
	"profilegate/internal/profile/models"
	"profilegate/pkg/platform/circuit"
)

type fakeOllama struct {
	calls atomic.Int32

	mu       sync.Mutex
	lastBody generateRequest
	status   int
	reply    string
	delay    time.Duration
}

func (f *fakeOllama) respondWith(status int, reply string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.reply = reply
}

func (f *fakeOllama) last() generateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	var body generateRequest
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.lastBody = body
	status, reply, delay := f.status, f.reply, f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 && status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(generateResponse{Response: reply, Done: true})
}

func newTestClient(t *testing.T, f *fakeOllama, opts ...Option) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	m := metrics.New(prometheus.NewRegistry())
	opts = append([]Option{WithMetrics(m)}, opts...)
	return New(srv.URL+"/api/generate", "qwen2-vl", opts...), m
}

func TestClient_ExtractIdentity(t *testing.T) {
	f := &fakeOllama{reply: `{"last_name":"Doe","first_name":"John","date_of_birth":"1990-01-01"}`}
	c, m := newTestClient(t, f)
	img := pngBase64(t)

	identity, err := c.ExtractIdentity(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, models.ExtractedIdentity{LastName: "Doe", FirstName: "John", DateOfBirth: "1990-01-01"}, identity)

	body := f.last()
	assert.Equal(t, "qwen2-vl", body.Model)
	assert.Equal(t, "json", body.Format)
	assert.False(t, body.Stream)
	assert.Equal(t, []string{img}, body.Images)
	assert.Contains(t, body.Prompt, "date_of_birth")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ExtractionCalls.WithLabelValues(TaskIdentity, "ok")))
}

func TestClient_ExtractIdentityDegradesUnreadableReply(t *testing.T) {
	f := &fakeOllama{reply: "sorry, blurry"}
	c, m := newTestClient(t, f)

	identity, err := c.ExtractIdentity(context.Background(), pngBase64(t))
	require.NoError(t, err)
	assert.Equal(t, models.ExtractedIdentity{}, identity)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ExtractionDegraded.WithLabelValues(TaskIdentity)))
}

func TestClient_ExtractSalary(t *testing.T) {
	f := &fakeOllama{reply: "```json\n{\"net_salary\": \"$5,000.00\"}\n```"}
	c, _ := newTestClient(t, f)

	salary, err := c.ExtractSalary(context.Background(), pngBase64(t))
	require.NoError(t, err)
	assert.Equal(t, 5000.0, salary)
	assert.Contains(t, f.last().Prompt, "net_salary")
}

func TestClient_LogsDecodedImage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := &fakeOllama{reply: `{"net_salary": 5000}`}
	c, _ := newTestClient(t, f, WithLogger(logger))

	_, err := c.ExtractSalary(context.Background(), pngBase64(t))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "extraction image decoded")
	assert.Contains(t, out, "image_format=png")
	assert.Contains(t, out, "width=3")
	assert.Contains(t, out, "height=2")
}

func TestClient_Failures(t *testing.T) {
	t.Run("bad image never reaches the server", func(t *testing.T) {
		f := &fakeOllama{}
		c, _ := newTestClient(t, f)

		_, err := c.ExtractIdentity(context.Background(), "not-an-image")
		require.Error(t, err)
		assert.Equal(t, CategoryBadImage, CategoryOf(err))
		assert.Equal(t, int32(0), f.calls.Load())
	})

	t.Run("server error is a provider outage", func(t *testing.T) {
		f := &fakeOllama{status: http.StatusInternalServerError}
		c, m := newTestClient(t, f)

		_, err := c.ExtractSalary(context.Background(), pngBase64(t))
		require.Error(t, err)
		assert.Equal(t, CategoryProviderOutage, CategoryOf(err))
		assert.Equal(t, 1.0, promtest.ToFloat64(m.ExtractionCalls.WithLabelValues(TaskSalary, string(CategoryProviderOutage))))
	})

	t.Run("slow server is a timeout", func(t *testing.T) {
		f := &fakeOllama{delay: 500 * time.Millisecond, reply: `{"net_salary": 1}`}
		c, _ := newTestClient(t, f, WithTimeout(50*time.Millisecond))

		_, err := c.ExtractSalary(context.Background(), pngBase64(t))
		require.Error(t, err)
		assert.Equal(t, CategoryTimeout, CategoryOf(err))
	})

	t.Run("unreachable server is a provider outage", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := New(url, "qwen2-vl")
		_, err := c.ExtractIdentity(context.Background(), pngBase64(t))
		require.Error(t, err)
		assert.Equal(t, CategoryProviderOutage, CategoryOf(err))
	})

	t.Run("malformed envelope is a provider outage", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		}))
		t.Cleanup(srv.Close)

		_, err := New(srv.URL, "m").ExtractIdentity(context.Background(), pngBase64(t))
		require.Error(t, err)
		assert.Equal(t, CategoryProviderOutage, CategoryOf(err))
	})
}

func TestClient_CircuitBreaker(t *testing.T) {
	img := pngBase64(t)
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newBreaker := func() *circuit.Breaker {
		return circuit.New("ocr",
			circuit.WithFailureThreshold(2),
			circuit.WithCooldown(time.Minute),
			circuit.WithClock(func() time.Time { return now }),
		)
	}

	t.Run("outages open the breaker and later calls fail fast", func(t *testing.T) {
		breaker := newBreaker()
		f := &fakeOllama{status: http.StatusServiceUnavailable}
		c, _ := newTestClient(t, f, WithBreaker(breaker))

		for range 2 {
			_, err := c.ExtractSalary(ctx, img)
			assert.Equal(t, CategoryProviderOutage, CategoryOf(err))
		}
		require.True(t, breaker.IsOpen())

		_, err := c.ExtractSalary(ctx, img)
		assert.Equal(t, CategoryCircuitOpen, CategoryOf(err))
		assert.Equal(t, int32(2), f.calls.Load())
	})

	t.Run("bad images do not trip the breaker", func(t *testing.T) {
		breaker := newBreaker()
		f := &fakeOllama{status: http.StatusServiceUnavailable}
		c, _ := newTestClient(t, f, WithBreaker(breaker))

		for range 3 {
			_, err := c.ExtractSalary(ctx, "garbage")
			assert.Equal(t, CategoryBadImage, CategoryOf(err))
		}
		assert.False(t, breaker.IsOpen())
		assert.Equal(t, int32(0), f.calls.Load())
	})

	t.Run("a successful call after cooldown closes the breaker", func(t *testing.T) {
		breaker := newBreaker()
		f := &fakeOllama{status: http.StatusServiceUnavailable}
		c, _ := newTestClient(t, f, WithBreaker(breaker))

		for range 2 {
			_, _ = c.ExtractSalary(ctx, img)
		}
		require.True(t, breaker.IsOpen())

		now = now.Add(2 * time.Minute)
		f.respondWith(http.StatusOK, `{"net_salary": 10}`)

		salary, err := c.ExtractSalary(ctx, img)
		require.NoError(t, err)
		assert.Equal(t, 10.0, salary)
		assert.False(t, breaker.IsOpen())
	})
}

func TestError(t *testing.T) {
	err := &Error{Task: TaskIdentity, Category: CategoryTimeout, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "extract identity: timeout: context deadline exceeded", err.Error())
	assert.Equal(t, Category(""), CategoryOf(context.Canceled))
}
