package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"
)

// RequestStatus represents the current status of a track request
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusRunning   RequestStatus = "running"
	StatusCompleted RequestStatus = "completed"
	StatusFailed    RequestStatus = "failed"
)

// Request represents one track request from a user
type Request struct {
	ID        string
	UserID    int64
	URL       string
	Status    RequestStatus
	Key       string
	Caption   string
	FromCache bool
	Error     string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// RequestManager tracks in-flight and recently finished track requests
type RequestManager struct {
	requests  map[string]*Request
	mu        sync.RWMutex
	listeners map[string][]chan *Request
}

const requestRetention = 1 * time.Hour

// NewRequestManager creates a new request manager
func NewRequestManager() *RequestManager {
	return &RequestManager{
		requests:  make(map[string]*Request),
		listeners: make(map[string][]chan *Request),
	}
}

// StartCleanup starts a background goroutine that removes old finished
// requests. Stops when ctx is cancelled.
func (rm *RequestManager) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.cleanup()
			}
		}
	}()
}

func (rm *RequestManager) cleanup() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	cutoff := time.Now().Add(-requestRetention)
	for id, req := range rm.requests {
		if req.CompletedAt != nil && req.CompletedAt.Before(cutoff) {
			delete(rm.requests, id)
			delete(rm.listeners, id)
		}
	}
}

// Create registers a new pending request
func (rm *RequestManager) Create(userID int64, url string) *Request {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	req := &Request{
		ID:        generateRequestID(),
		UserID:    userID,
		URL:       url,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	rm.requests[req.ID] = req
	cp := *req
	return &cp
}

// Get retrieves a request by ID. Callers receive a copy: the stored request
// is only ever touched under the manager's mutex.
func (rm *RequestManager) Get(id string) (*Request, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	req, ok := rm.requests[id]
	if !ok {
		return nil, fmt.Errorf("request not found: %s", id)
	}
	cp := *req
	return &cp, nil
}

// Update applies fn to a request and maintains status timestamps
func (rm *RequestManager) Update(id string, fn func(*Request)) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	req, ok := rm.requests[id]
	if !ok {
		return fmt.Errorf("request not found: %s", id)
	}

	oldStatus := req.Status
	fn(req)

	if oldStatus != req.Status {
		switch req.Status {
		case StatusRunning:
			if req.StartedAt == nil {
				now := time.Now()
				req.StartedAt = &now
			}
		case StatusCompleted, StatusFailed:
			if req.CompletedAt == nil {
				now := time.Now()
				req.CompletedAt = &now
			}
		}
	}

	rm.notifyListeners(id, req)
	return nil
}

// Subscribe subscribes to updates for one request
func (rm *RequestManager) Subscribe(id string) <-chan *Request {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	ch := make(chan *Request, 10)
	rm.listeners[id] = append(rm.listeners[id], ch)
	return ch
}

// Unsubscribe removes a listener
func (rm *RequestManager) Unsubscribe(id string, ch <-chan *Request) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	listeners := rm.listeners[id]
	for i, listener := range listeners {
		if listener == ch {
			rm.listeners[id] = append(listeners[:i], listeners[i+1:]...)
			close(listener)
			break
		}
	}
}

// notifyListeners sends a snapshot of the request to all listeners, so
// receivers never read a request the manager is still mutating.
func (rm *RequestManager) notifyListeners(id string, req *Request) {
	for _, ch := range rm.listeners[id] {
		cp := *req
		select {
		case ch <- &cp:
		default:
		}
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return fmt.Sprintf("req_%x", b)
}
