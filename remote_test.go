package qfilter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService is an in-memory hardware job service.
type fakeService struct {
	mu          sync.Mutex
	statuses    []string
	counts      map[string]int
	submissions int
	polls       int
	failPolls   int
	failCode    int
	lastQASM    string
	lastAuth    string
}

func (f *fakeService) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/backends", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]Device{
			{Name: "sim", NumQubits: 32, Operational: true, Simulator: true},
			{Name: "small", NumQubits: 5, Operational: true},
			{Name: "busy", NumQubits: 27, Operational: true, PendingJobs: 40},
			{Name: "down", NumQubits: 127, Operational: false},
			{Name: "quiet", NumQubits: 127, Operational: true, PendingJobs: 3},
		})
	})

	r.Post("/jobs", func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		f.submissions++
		f.lastQASM = req.QASM
		f.lastAuth = r.Header.Get("Authorization")
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(jobStatus{ID: "job-1", Status: "QUEUED"})
	})

	r.Get("/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.failPolls > 0 {
			f.failPolls--
			code := f.failCode
			if code == 0 {
				code = http.StatusServiceUnavailable
			}
			http.Error(w, http.StatusText(code), code)
			return
		}

		status := f.statuses[min(f.polls, len(f.statuses)-1)]
		f.polls++
		_ = json.NewEncoder(w).Encode(jobStatus{ID: chi.URLParam(r, "id"), Status: status})
	})

	r.Get("/jobs/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jobResult{Counts: f.counts})
	})

	return r
}

func newTestRemote(url string) *RemoteBackend {
	cfg := NewConfig()
	cfg.Hardware.URL = url
	cfg.Hardware.Token = "secret"
	cfg.Hardware.PollInterval = 5 * time.Millisecond
	cfg.Hardware.RetryBackoff = time.Millisecond
	cfg.Hardware.MaxFailedJobs = 2
	cfg.Hardware.BreakerReset = time.Hour
	cfg.Hardware.RequestRefill = time.Millisecond
	return NewRemoteBackend(cfg)
}

func TestRemoteBackend(t *testing.T) {
	Convey("Given a hardware service", t, func() {
		svc := &fakeService{
			statuses: []string{"QUEUED", "RUNNING", JobDone},
			counts:   map[string]int{"10111001000": 600, "00000000000": 424},
		}
		srv := httptest.NewServer(svc.router())
		defer srv.Close()

		rb := newTestRemote(srv.URL)
		c, err := BuildFilterCircuit(DefaultImage(), HighPass, DefaultD0)
		So(err, ShouldBeNil)

		Convey("LeastBusy should pick the shortest queue among capable devices", func() {
			d, err := rb.LeastBusy(context.Background(), NumQubits)
			So(err, ShouldBeNil)
			So(d.Name, ShouldEqual, "quiet")
			So(rb.Name(), ShouldEqual, "quiet")

			_, err = rb.LeastBusy(context.Background(), 500)
			So(err, ShouldNotBeNil)
		})

		Convey("Run should poll until DONE and return the counts", func() {
			h, err := rb.Run(context.Background(), c, 1024)
			So(err, ShouldBeNil)
			So(h.Total(), ShouldEqual, 1024)
			So(svc.submissions, ShouldEqual, 1)
			So(svc.polls, ShouldEqual, 3)
			So(svc.lastAuth, ShouldEqual, "Bearer secret")
			So(strings.Count(svc.lastQASM, "measure"), ShouldEqual, NumQubits)
		})

		Convey("Transient status errors should be retried", func() {
			svc.failPolls = 2
			h, err := rb.Run(context.Background(), c, 1024)
			So(err, ShouldBeNil)
			So(h.Total(), ShouldEqual, 1024)
			So(svc.submissions, ShouldEqual, 1)
		})

		Convey("Permanent status errors should not be retried", func() {
			svc.failPolls = 2
			svc.failCode = http.StatusNotFound
			_, err := rb.Run(context.Background(), c, 1024)

			var se *StatusError
			So(errors.As(err, &se), ShouldBeTrue)
			So(se.Code, ShouldEqual, http.StatusNotFound)
			So(svc.failPolls, ShouldEqual, 1)
		})

		Convey("A result short of the requested shots should be rejected", func() {
			svc.counts = map[string]int{"10111001000": 10, "00000000000": 5}
			h, err := rb.Run(context.Background(), c, 1024)
			So(h, ShouldBeNil)
			So(errors.Is(err, ErrNoResult), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "15 of 1024 shots")
		})

		Convey("A failed job should surface as no result without resubmitting", func() {
			svc.statuses = []string{"RUNNING", JobError}
			_, err := rb.Run(context.Background(), c, 1024)
			So(errors.Is(err, ErrNoResult), ShouldBeTrue)
			So(svc.submissions, ShouldEqual, 1)

			Convey("And repeated failures should open the breaker", func() {
				svc.statuses = []string{JobCancelled}
				_, err := rb.Run(context.Background(), c, 1024)
				So(errors.Is(err, ErrNoResult), ShouldBeTrue)

				_, err = rb.Run(context.Background(), c, 1024)
				So(errors.Is(err, ErrBreakerOpen), ShouldBeTrue)
				So(svc.submissions, ShouldEqual, 2)
			})
		})

		Convey("A cancelled context should stop polling", func() {
			svc.statuses = []string{"RUNNING"}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			_, err := rb.Run(ctx, c, 1024)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(rb.breaker.State(), ShouldEqual, BreakerClosed)
		})

		Convey("The pipeline should reconstruct from hardware counts", func() {
			exp := NewExperiment(NewConfig(), DefaultImage())
			exp.Shots = 1024
			res, err := Run(context.Background(), exp, rb)
			So(err, ShouldBeNil)
			So(res.Reconstruction.FilteredShots, ShouldEqual, 600)
			So(res.Reconstruction.Filtered.At(0, 1), ShouldAlmostEqual, 200.0, 1e-12)
		})
	})
}

func TestRetryable(t *testing.T) {
	Convey("Only transport errors and server errors should be retried", t, func() {
		So(retryable(errors.New("connection reset")), ShouldBeTrue)
		So(retryable(&StatusError{Code: http.StatusBadGateway}), ShouldBeTrue)
		So(retryable(&StatusError{Code: http.StatusUnauthorized}), ShouldBeFalse)
		So(retryable(&StatusError{Code: http.StatusNotFound}), ShouldBeFalse)
		So(retryable(context.Canceled), ShouldBeFalse)
	})
}
