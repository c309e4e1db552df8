package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testToken = "123:abc"

type apiCall struct {
	Method string
	Params map[string]any
}

// fakeAPI is a minimal Bot API server. Handlers per method may be overridden.
type fakeAPI struct {
	t    *testing.T
	srv  *httptest.Server
	mu   sync.Mutex
	log  []apiCall
	next map[string][]http.HandlerFunc
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, next: map[string][]http.HandlerFunc{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + testToken + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)

	params := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&params)

	f.mu.Lock()
	f.log = append(f.log, apiCall{Method: method, Params: params})
	var h http.HandlerFunc
	if q := f.next[method]; len(q) > 0 {
		h, f.next[method] = q[0], q[1:]
	}
	f.mu.Unlock()

	if h != nil {
		h(w, r)
		return
	}
	switch method {
	case "sendMessage":
		writeOK(w, map[string]any{"message_id": len(f.calls()), "date": 0, "chat": map[string]any{"id": 1}})
	case "createForumTopic":
		writeOK(w, map[string]any{"message_thread_id": 77, "name": params["name"]})
	default:
		writeOK(w, true)
	}
}

// queue makes the next call to method use h.
func (f *fakeAPI) queue(method string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next[method] = append(f.next[method], h)
}

func (f *fakeAPI) calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.log...)
}

func (f *fakeAPI) client(t *testing.T) *Client {
	t.Helper()
	c, err := New(Config{
		Token:      testToken,
		APIURL:     f.srv.URL,
		RatePerSec: 1000,
		Burst:      100,
		MaxRetries: 2,
		RetryMin:   time.Millisecond,
		RetryMax:   5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func writeOK(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": result})
}

func writeErr(code int, desc string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": code, "description": desc})
	}
}

// dropConn closes the connection without a response.
func dropConn(w http.ResponseWriter, _ *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("hijack unsupported")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	_ = conn.Close()
}
