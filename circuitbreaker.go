package qfilter

import (
	"errors"
	"sync"
	"time"

	"github.com/theapemachine/errnie"
)

var ErrBreakerOpen = errors.New("job breaker is open")

/*
BreakerState tracks whether hardware submissions are currently allowed.
*/
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // submissions allowed
	BreakerOpen                         // too many failed jobs, rejecting
	BreakerHalfOpen                     // probing with a limited number of jobs
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}

/*
JobBreaker stops a remote backend from submitting new jobs after a run of
failed ones. A job counts as failed when it ends in ERROR or CANCELLED or when
its submission or result fetch errors out. After resetTimeout the breaker
admits at most halfOpenMax probe jobs; once that many succeed it closes again,
any failure reopens it.
*/
type JobBreaker struct {
	mu               sync.Mutex
	maxFailures      int
	resetTimeout     time.Duration
	halfOpenMax      int
	failureCount     int
	state            BreakerState
	openTime         time.Time
	halfOpenAttempts int // probes admitted
	halfOpenSuccess  int
}

/*
NewJobBreaker creates a breaker in the closed state.

Parameters:
  - maxFailures: consecutive failed jobs before opening
  - resetTimeout: how long to stay open before probing
  - halfOpenMax: probes admitted while half-open, all must succeed to close
*/
func NewJobBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) *JobBreaker {
	return &JobBreaker{
		maxFailures:  max(maxFailures, 1),
		resetTimeout: resetTimeout,
		halfOpenMax:  max(halfOpenMax, 1),
		state:        BreakerClosed,
	}
}

// State reports the current state without triggering a transition.
func (jb *JobBreaker) State() BreakerState {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.state
}

// RecordFailure counts a failed job and opens the breaker at the threshold.
func (jb *JobBreaker) RecordFailure() {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	if jb.state == BreakerHalfOpen {
		jb.state = BreakerOpen
		jb.openTime = time.Now()
		errnie.Warn("job breaker reopened from half-open state")
		return
	}

	jb.failureCount++
	if jb.state == BreakerClosed && jb.failureCount >= jb.maxFailures {
		jb.state = BreakerOpen
		jb.openTime = time.Now()
		errnie.Warn("job breaker opened after %d failed jobs", jb.failureCount)
	}
}

// RecordSuccess counts a completed job.
func (jb *JobBreaker) RecordSuccess() {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	switch jb.state {
	case BreakerHalfOpen:
		jb.halfOpenSuccess++
		if jb.halfOpenSuccess >= jb.halfOpenMax {
			jb.state = BreakerClosed
			jb.failureCount = 0
			jb.halfOpenAttempts = 0
			jb.halfOpenSuccess = 0
			errnie.Info("job breaker closed from half-open")
		}
	case BreakerClosed:
		jb.failureCount = 0
	}
}

/*
Allow reports whether a new job may be submitted, moving an open breaker to
half-open once the reset timeout has passed.
*/
func (jb *JobBreaker) Allow() bool {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	switch jb.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if time.Since(jb.openTime) >= jb.resetTimeout {
			jb.state = BreakerHalfOpen
			jb.halfOpenAttempts = 1
			jb.halfOpenSuccess = 0
			return true
		}
		return false
	case BreakerHalfOpen:
		if jb.halfOpenAttempts < jb.halfOpenMax {
			jb.halfOpenAttempts++
			return true
		}
		return false
	default:
		return false
	}
}
