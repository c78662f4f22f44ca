package tool

import (
	"sync"
	"time"
)

// DispatchObservation captures one dispatch outcome.
type DispatchObservation struct {
	ToolName  string
	Origin    Origin
	RequestID string
	Duration  time.Duration
	Success   bool
	ErrorKind ErrorKind
	Timeout   bool
}

// RetryObservation captures one retried attempt. Component names the caller
// that retried, e.g. "http", "stdio", or "model".
type RetryObservation struct {
	ToolName  string
	Component string
	Attempt   int
	ErrorKind ErrorKind
}

// Observer receives tool-level observability events.
type Observer interface {
	ObserveDispatch(observation DispatchObservation)
	ObserveRetry(observation RetryObservation)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(DispatchObservation) {}
func (noopObserver) ObserveRetry(RetryObservation)       {}

var (
	observerMu     sync.RWMutex
	activeObserver Observer = noopObserver{}
)

// SetObserver sets the process-wide tool observability observer.
func SetObserver(observer Observer) {
	observerMu.Lock()
	defer observerMu.Unlock()
	if observer == nil {
		activeObserver = noopObserver{}
		return
	}
	activeObserver = observer
}

func currentObserver() Observer {
	observerMu.RLock()
	defer observerMu.RUnlock()
	return activeObserver
}

func emitDispatchObservation(observation DispatchObservation) {
	currentObserver().ObserveDispatch(observation)
}

func emitRetryObservation(observation RetryObservation) {
	currentObserver().ObserveRetry(observation)
}
