package mockserver

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// SentMessage is one sendMessage call.
type SentMessage struct {
	ChatID int64
	Text   string
}

// MockBotServer is a minimal chat Bot API: getMe, getUpdates (always empty)
// and sendMessage.
type MockBotServer struct {
	mu     sync.Mutex
	sent   []SentMessage
	server *httptest.Server
}

// NewMockBotServer starts the server. Close it when done.
func NewMockBotServer() *MockBotServer {
	s := &MockBotServer{sent: make([]SentMessage, 0)}

	router := mux.NewRouter()
	router.HandleFunc("/bot{token}/getMe", s.handleGetMe)
	router.HandleFunc("/bot{token}/getUpdates", s.handleGetUpdates)
	router.HandleFunc("/bot{token}/sendMessage", s.handleSendMessage)

	s.server = httptest.NewServer(router)

	return s
}

// Endpoint is the Bot API endpoint format string, with token and method
// placeholders.
func (s *MockBotServer) Endpoint() string {
	return s.server.URL + "/bot%s/%s"
}

func (s *MockBotServer) Close() {
	s.server.Close()
}

// Sent returns every delivered message in order.
func (s *MockBotServer) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SentMessage{}, s.sent...)
}

func (s *MockBotServer) handleGetMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"result": map[string]any{
			"id":         1,
			"is_bot":     true,
			"first_name": "Monitor",
			"username":   "monitor_bot",
		},
	})
}

func (s *MockBotServer) handleGetUpdates(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
		return
	case <-time.After(50 * time.Millisecond):
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": []any{}})
}

func (s *MockBotServer) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "description": "bad form"})

		return
	}

	chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)

	s.mu.Lock()
	s.sent = append(s.sent, SentMessage{ChatID: chatID, Text: r.FormValue("text")})
	id := len(s.sent)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"result": map[string]any{
			"message_id": id,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": chatID, "type": "private"},
			"text":       r.FormValue("text"),
		},
	})
}
