package wire

import (
	"context"
	"sync"
)

// MockSession is a programmable Session for exercising dispatch and
// compound-operation logic without a live document
// store. The Session interface exists mainly so tests and the demo
// binary can substitute this in place of KivikSession.
type MockSession struct {
	mu        sync.Mutex
	Endpoints []string
	Handler   func(Request) (Response, error)
	Calls     []Request
}

// NewMockSession returns a MockSession bound to endpoint that answers
// every Send with handler.
func NewMockSession(endpoint string, handler func(Request) (Response, error)) *MockSession {
	return &MockSession{Endpoints: []string{endpoint}, Handler: handler}
}

func (m *MockSession) Send(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.Handler == nil {
		return Response{}, nil
	}
	return m.Handler(req)
}

func (m *MockSession) LastEndpoints() []string {
	return m.Endpoints
}

// CallCount reports how many Send calls this mock has observed so far.
func (m *MockSession) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
