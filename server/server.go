package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/wissen/pkg/assistant"
	"github.com/xhad/wissen/pkg/citation"
	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/tool"
)

// Message is the websocket envelope in both directions. Clients send
// {"type":"question","content":"..."}; the server answers with status,
// stream, response, sources and error messages.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	TypeQuestion = "question"
	TypeStatus   = "status"
	TypeStream   = "stream"
	TypeResponse = "response"
	TypeSources  = "sources"
	TypeError    = "error"
)

// Asker answers support questions.
type Asker interface {
	AskStream(ctx context.Context, question string, onChunk func(string)) (*assistant.Answer, error)
}

// Searcher is the knowledge base search tool.
type Searcher interface {
	Search(ctx context.Context, params tool.Params) (*tool.Response, error)
	AvailableSources(ctx context.Context) ([]string, error)
}

type Config struct {
	Port      string
	Streaming bool
	Logger    *slog.Logger
}

// Server serves the chat websocket and the JSON search API.
type Server struct {
	config    Config
	assistant Asker
	search    Searcher
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

func New(asker Asker, search Searcher, config Config) (*Server, error) {
	if asker == nil {
		return nil, errors.New("assistant required")
	}
	if search == nil {
		return nil, errors.New("search tool required")
	}
	if config.Port == "" {
		config.Port = "8080"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Server{
		config:    config,
		assistant: asker,
		search:    search,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // the chat UI is served from another origin
			},
		},
		logger: config.Logger,
	}, nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/sources", s.handleSources)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "port", s.config.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// wsConn serializes writes; gorilla allows only one concurrent writer.
type wsConn struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	logger *slog.Logger
}

func (c *wsConn) send(msgType, content string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(Message{Type: msgType, Content: content, Data: data}); err != nil {
		c.logger.Warn("error sending message", "type", msgType, "err", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ws := &wsConn{conn: conn, logger: s.logger}
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "err", err)
			}
			return
		}

		if msg.Type != TypeQuestion {
			ws.send(TypeError, fmt.Sprintf("Unbekannter Nachrichtentyp: %q", msg.Type), nil)
			continue
		}
		s.answer(r.Context(), ws, msg.Content)
	}
}

func (s *Server) answer(ctx context.Context, ws *wsConn, question string) {
	ws.send(TypeStatus, "Suche in der Wissensdatenbank …", nil)

	var onChunk func(string)
	if s.config.Streaming {
		onChunk = func(chunk string) { ws.send(TypeStream, chunk, nil) }
	}

	answer, err := s.assistant.AskStream(ctx, question, onChunk)
	if err != nil && !errors.Is(err, retrieval.ErrInvalidQuery) {
		ws.send(TypeError, answer.Text, nil)
		return
	}

	ws.send(TypeResponse, answer.Text, nil)
	ws.send(TypeSources, "", answer.Citations.References())
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Text    string               `json:"text"`
	Sources []citation.Reference `json:"sources"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	answer, err := s.assistant.AskStream(r.Context(), req.Question, nil)
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: answer.Text})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Text: answer.Text, Sources: answer.Citations.References()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var params tool.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	resp, err := s.search.Search(r.Context(), params)
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("search failed", "query", params.Query, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "search failed"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.search.AvailableSources(r.Context())
	if err != nil {
		s.logger.Error("listing sources failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "listing sources failed"})
		return
	}
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sources": sources})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
