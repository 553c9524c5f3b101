package vitals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/resilience"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const (
	apiKeyHeader   = "x-api-key"
	dateLayout     = "2006-01-02"
	maxErrBodySize = 512
	vitalCount     = 8

	pathVitals   = "/v1/vitals"
	pathActivity = "/v1/activity"
	pathHRStream = "/v1/heart_rate/samples"
)

// vitalsPayload is the summary document. Absent fields stay nil and become gaps.
type vitalsPayload struct {
	HeartRate      *float64 `json:"heart_rate"`
	HRV            *float64 `json:"hrv"`
	SleepScore     *float64 `json:"sleep_score"`
	BaselineHR     *float64 `json:"baseline_hr"`
	ImmunityIndex  *float64 `json:"immunity_index"`
	TrainingStress *float64 `json:"training_stress"`
	SpO2           *float64 `json:"spo2"`
}

type activityPayload struct {
	Records []ActivityRecord `json:"records"`
}

type hrPayload struct {
	Samples []model.HRSample `json:"samples"`
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the key sent in the x-api-key header.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

// WithRateLimit caps outgoing requests per second with the given burst.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithCircuitBreaker guards every request with cb.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) ClientOption {
	return func(c *Client) { c.breaker = cb }
}

// Client is a Source backed by the vendor HTTP API.
type Client struct {
	base    *url.URL
	apiKey  string
	http    *http.Client
	timeout time.Duration
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	log     logger.Logger
}

var _ Source = (*Client)(nil)

// NewClient creates a Client for baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, eris.Wrapf(err, "parse vitals base url %q", baseURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, eris.Errorf("vitals base url %q needs a scheme and host", baseURL)
	}

	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: 10 * time.Second,
		retry:   resilience.DefaultRetryConfig(),
		limiter: rate.NewLimiter(rate.Limit(10), 10),
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{ShouldTrip: resilience.IsTransient}),
		log:     logger.Named("vitals"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Fetch pulls the summary vitals and the activity history concurrently and
// assembles one bundle.
func (c *Client) Fetch(ctx context.Context, subject string, r Range) (model.VitalsBundle, error) {
	if !r.Valid() {
		return model.VitalsBundle{}, ErrInvalidRange
	}

	var (
		summary  vitalsPayload
		activity activityPayload
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, "summary", pathVitals, subject, r, &summary)
	})
	g.Go(func() error {
		err := c.getJSON(gctx, "activity", pathActivity, subject, r, &activity)
		if errors.Is(err, ErrNoData) {
			// No history only leaves a gap.
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return model.VitalsBundle{}, err
	}
	return assemble(summary, activity.Records)
}

// HeartRateSamples returns the heart-rate stream, oldest first.
func (c *Client) HeartRateSamples(ctx context.Context, subject string, r Range) ([]model.HRSample, error) {
	if !r.Valid() {
		return nil, ErrInvalidRange
	}
	var p hrPayload
	if err := c.getJSON(ctx, "hr_samples", pathHRStream, subject, r, &p); err != nil {
		return nil, err
	}
	if len(p.Samples) == 0 {
		return nil, ErrNoData
	}
	return p.Samples, nil
}

func assemble(p vitalsPayload, activity []ActivityRecord) (model.VitalsBundle, error) {
	var b model.VitalsBundle
	set := func(name string, src *float64, dst *float64) {
		if src == nil {
			b.Gaps = append(b.Gaps, name)
			return
		}
		*dst = *src
	}
	set(VitalHeartRate, p.HeartRate, &b.HeartRate)
	set(VitalHRV, p.HRV, &b.HRV)
	set(VitalSleepScore, p.SleepScore, &b.SleepScore)
	set(VitalBaselineHR, p.BaselineHR, &b.BaselineHR)
	if avg, ok := LatestCompleteWeek(WeeklyAverages(activity)); ok {
		b.ActivityMinutes = avg
	} else {
		b.Gaps = append(b.Gaps, VitalActivityMinutes)
	}
	set(VitalImmunityIndex, p.ImmunityIndex, &b.ImmunityIndex)
	set(VitalTrainingStress, p.TrainingStress, &b.TrainingStress)
	set(VitalSpO2, p.SpO2, &b.SpO2)

	// A bundle with nothing in it is no data, not a list of gaps.
	if len(b.Gaps) == vitalCount {
		return model.VitalsBundle{}, ErrNoData
	}
	return b, nil
}

func (c *Client) getJSON(ctx context.Context, op, path, subject string, r Range, out any) error {
	start := time.Now()
	cfg := c.retry
	cfg.OnRetry = resilience.Chain(cfg.OnRetry,
		resilience.RetryLogger(ctx, "vitals", op),
		func(int, error) { metrics.RecordVitalsRetry() },
	)

	_, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.do(ctx, path, subject, r, out)
		})
	})

	metrics.RecordVitalsLatency(float64(time.Since(start).Milliseconds()))
	switch {
	case err == nil:
		metrics.RecordVitalsRequest(op, "success")
	case errors.Is(err, ErrNoData):
		metrics.RecordVitalsRequest(op, "no_data")
	default:
		metrics.RecordVitalsRequest(op, "error")
		c.log.Warn(ctx, "vitals request failed",
			logger.String("operation", op),
			logger.String("subject", subject),
			logger.Error(err),
		)
	}
	return err
}

func (c *Client) do(ctx context.Context, path, subject string, r Range, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "vitals rate limiter")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path += path
	q := url.Values{}
	q.Set("subject", subject)
	q.Set("start", r.Start.Format(dateLayout))
	q.Set("end", r.End.Format(dateLayout))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return eris.Wrap(err, "build vitals request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and dropped connections are retried.
		return resilience.NewTransientError(eris.Wrapf(err, "GET %s", path), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent:
		return fmt.Errorf("%w: %s for %s", ErrNoData, path, subject)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		err := eris.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s for %s", ErrNoData, path, subject)
		}
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}
