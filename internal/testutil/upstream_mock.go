package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type cannedResponse struct {
	status int
	body   []byte
	hangUp bool
}

// MockUpstream is a fake analytics backend. It answers each path with a canned JSON body or
// status, counts calls, and records the credentials and query it saw.
//
// Example usage:
//
//	up := testutil.NewMockUpstream(t).
//	    Respond("/account", []map[string]any{{"client_id": "C1", "today_total": 100}})
//	client := upstream.NewClient(up.URL(), time.Second, zerolog.Nop())
type MockUpstream struct {
	server *httptest.Server

	mu         sync.Mutex
	responses  map[string]cannedResponse
	calls      map[string]int
	lastCookie string
	lastQuery  map[string]string
	holds      map[string]chan struct{}
}

// NewMockUpstream starts the server; it is closed when the test completes. Unknown paths answer
// 404.
func NewMockUpstream(t *testing.T) *MockUpstream {
	t.Helper()

	m := &MockUpstream{
		responses: make(map[string]cannedResponse),
		calls:     make(map[string]int),
		lastQuery: make(map[string]string),
		holds:     make(map[string]chan struct{}),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the base URL to configure the backend client with.
func (m *MockUpstream) URL() string { return m.server.URL }

// Respond answers path with body encoded as JSON.
func (m *MockUpstream) Respond(path string, body any) *MockUpstream {
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = cannedResponse{status: http.StatusOK, body: data}
	return m
}

// RespondStatus answers path with an empty body and status.
func (m *MockUpstream) RespondStatus(path string, status int) *MockUpstream {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = cannedResponse{status: status}
	return m
}

// HangUp makes path drop the connection without answering.
func (m *MockUpstream) HangUp(path string) *MockUpstream {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = cannedResponse{hangUp: true}
	return m
}

// Hold parks requests to path until release is called. Release is safe to call more than once.
func (m *MockUpstream) Hold(path string) (release func()) {
	ch := make(chan struct{})
	m.mu.Lock()
	m.holds[path] = ch
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Calls returns how many requests path received.
func (m *MockUpstream) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// LastCookie returns the Cookie header of the latest request.
func (m *MockUpstream) LastCookie() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCookie
}

// LastQuery returns the query value key of the latest request to path.
func (m *MockUpstream) LastQuery(path, key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery[path+"?"+key]
}

func (m *MockUpstream) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.calls[r.URL.Path]++
	m.lastCookie = r.Header.Get("Cookie")
	for k := range r.URL.Query() {
		m.lastQuery[r.URL.Path+"?"+k] = r.URL.Query().Get(k)
	}
	resp, ok := m.responses[r.URL.Path]
	hold := m.holds[r.URL.Path]
	m.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	if !ok {
		http.NotFound(w, r)
		return
	}
	if resp.hangUp {
		hj, ok := w.(http.Hijacker)
		if !ok {
			panic("testutil: response writer cannot hijack")
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.body != nil {
		_, _ = w.Write(resp.body)
	}
}
