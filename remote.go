package qfilter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/theapemachine/errnie"
)

var ErrNoResult = errors.New("hardware job returned no result")

// StatusError is a response from the hardware service with an error status.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Code, http.StatusText(e.Code), e.Body)
}

/*
retryable reports whether a failed request is worth repeating: transport
errors and 5xx responses are, 4xx responses and a done context are not.
*/
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	return true
}

// Terminal job states reported by the hardware service.
const (
	JobDone      = "DONE"
	JobError     = "ERROR"
	JobCancelled = "CANCELLED"
)

// Device describes one entry of the hardware service's backend listing.
type Device struct {
	Name        string `json:"name"`
	NumQubits   int    `json:"num_qubits"`
	Operational bool   `json:"operational"`
	Simulator   bool   `json:"simulator"`
	PendingJobs int    `json:"pending_jobs"`
}

type jobRequest struct {
	ClientID string `json:"client_id"`
	Backend  string `json:"backend"`
	QASM     string `json:"qasm"`
	Shots    int    `json:"shots"`
}

type jobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type jobResult struct {
	Counts map[string]int `json:"counts"`
}

/*
RemoteBackend runs circuits on a hardware job service over HTTP.

A run submits the circuit once, then polls the job status every PollInterval
until the job reaches DONE, ERROR or CANCELLED. Only the status checks are
retried on transport errors; the submission never is. ERROR and CANCELLED
surface as ErrNoResult so the caller can decide whether to fall back.
*/
type RemoteBackend struct {
	BaseURL      string
	Token        string
	Device       string
	PollInterval time.Duration
	StatusRetry  *RetryPolicy

	client  *http.Client
	breaker *JobBreaker
	limiter *RateLimiter
}

// NewRemoteBackend builds a client from the hardware section of cfg.
func NewRemoteBackend(cfg *Config) *RemoteBackend {
	retry := NewRetryPolicy(cfg.Hardware.StatusRetries, cfg.Hardware.RetryBackoff)
	retry.Filter = retryable

	return &RemoteBackend{
		BaseURL:      strings.TrimRight(cfg.Hardware.URL, "/"),
		Token:        cfg.Hardware.Token,
		Device:       cfg.Hardware.Device,
		PollInterval: cfg.Hardware.PollInterval,
		StatusRetry:  retry,
		client:       &http.Client{Timeout: cfg.Hardware.RequestTimeout},
		breaker: NewJobBreaker(
			cfg.Hardware.MaxFailedJobs,
			cfg.Hardware.BreakerReset,
			1,
		),
		limiter: NewRateLimiter(cfg.Hardware.RequestBurst, cfg.Hardware.RequestRefill),
	}
}

func (rb *RemoteBackend) Name() string {
	if rb.Device == "" {
		return "remote"
	}
	return rb.Device
}

/*
LeastBusy picks the operational hardware device with at least minQubits
qubits and the shortest queue, and selects it for subsequent runs.
*/
func (rb *RemoteBackend) LeastBusy(ctx context.Context, minQubits int) (Device, error) {
	var devices []Device
	if err := rb.do(ctx, http.MethodGet, "/backends", nil, &devices); err != nil {
		return Device{}, fmt.Errorf("listing backends: %w", err)
	}

	candidates := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.Operational && !d.Simulator && d.NumQubits >= minQubits {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return Device{}, fmt.Errorf("no operational device with %d qubits", minQubits)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PendingJobs < candidates[j].PendingJobs
	})

	rb.Device = candidates[0].Name
	errnie.Info("RemoteBackend.LeastBusy - selected %s (%d pending)", rb.Device, candidates[0].PendingJobs)
	return candidates[0], nil
}

func (rb *RemoteBackend) Run(ctx context.Context, circuit *Circuit, shots int) (Histogram, error) {
	if shots <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidShots, shots)
	}
	if !rb.breaker.Allow() {
		return nil, ErrBreakerOpen
	}

	h, err := rb.run(ctx, circuit, shots)
	if err != nil && ctx.Err() == nil {
		rb.breaker.RecordFailure()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	rb.breaker.RecordSuccess()
	return h, nil
}

func (rb *RemoteBackend) run(ctx context.Context, circuit *Circuit, shots int) (Histogram, error) {
	req := jobRequest{
		ClientID: uuid.New().String(),
		Backend:  rb.Device,
		QASM:     circuit.QASM(),
		Shots:    shots,
	}

	var submitted jobStatus
	if err := rb.do(ctx, http.MethodPost, "/jobs", req, &submitted); err != nil {
		return nil, fmt.Errorf("submitting job: %w", err)
	}
	errnie.Info("RemoteBackend.Run - job %s submitted to %s", submitted.ID, rb.Name())

	status, err := rb.await(ctx, submitted.ID)
	if err != nil {
		return nil, err
	}
	if status.Status != JobDone {
		errnie.Warn("RemoteBackend.Run - job %s ended %s %s", status.ID, status.Status, status.Error)
		return nil, fmt.Errorf("%w: job %s ended %s", ErrNoResult, submitted.ID, status.Status)
	}

	var result jobResult
	if err := rb.do(ctx, http.MethodGet, "/jobs/"+submitted.ID+"/results", nil, &result); err != nil {
		return nil, fmt.Errorf("fetching results: %w", err)
	}
	if len(result.Counts) == 0 {
		return nil, fmt.Errorf("%w: job %s has no counts", ErrNoResult, submitted.ID)
	}

	h := Histogram(result.Counts)
	if total := h.Total(); total != shots {
		return nil, fmt.Errorf("%w: job %s returned %d of %d shots", ErrNoResult, submitted.ID, total, shots)
	}

	return h, nil
}

func (rb *RemoteBackend) await(ctx context.Context, id string) (jobStatus, error) {
	interval := rb.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	retry := rb.StatusRetry
	if retry == nil {
		retry = NewRetryPolicy(1, 0)
	}

	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var status jobStatus
		err := retry.Do(ctx, "status "+id, func() error {
			return rb.do(ctx, http.MethodGet, "/jobs/"+id, nil, &status)
		})
		if err != nil {
			return status, fmt.Errorf("checking job %s: %w", id, err)
		}

		switch status.Status {
		case JobDone, JobError, JobCancelled:
			return status, nil
		}

		errnie.Info("job %s status %s (elapsed %.0fs)", id, status.Status, time.Since(start).Seconds())

		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (rb *RemoteBackend) do(ctx context.Context, method, path string, in, out any) error {
	if rb.limiter != nil {
		if err := rb.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rb.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rb.Token != "" {
		req.Header.Set("Authorization", "Bearer "+rb.Token)
	}

	resp, err := rb.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
