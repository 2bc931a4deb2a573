package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/nestdb/nestdb"
	"github.com/nestdb/nestdb/core"
)

// Server is a TCP SQL server speaking one JSON request per line.
type Server struct {
	listener   net.Listener
	instance   *nestdb.Instance
	authConfig *AuthConfig
	safeMode   bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a SQL server over an opened instance.
func NewServer(instance *nestdb.Instance, authConfig *AuthConfig) *Server {
	return &Server{
		instance:   instance,
		authConfig: authConfig,
		done:       make(chan struct{}),
	}
}

// SetSafeMode blocks destructive statements on every connection.
func (s *Server) SetSafeMode(on bool) { s.safeMode = on }

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.Printf("SQL server listening on %s", listener.Addr())

	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log.Printf("Client connected: %s", conn.RemoteAddr())

	// every connection carries its own database context
	state := &ConnectionState{database: s.instance.Manager.ActiveDatabase()}
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		lower := strings.ToLower(input)
		if lower == "quit" || lower == "exit" {
			log.Printf("Client disconnected: %s", conn.RemoteAddr())
			return
		}

		var response Response
		switch {
		case strings.HasPrefix(strings.ToUpper(input), "AUTH "):
			response = s.handleAuth(input, state)
		case s.authRequired() && !state.IsAuthenticated():
			response = Response{Success: false, Error: "authentication required: AUTH JWT <token>"}
		default:
			response = s.executeQuery(input, state)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			continue
		}
		if _, err := conn.Write(data); err != nil {
			log.Printf("Write error to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

// executeQuery runs one request. The input may be a raw SQL line or a JSON
// {"query": ...} object.
func (s *Server) executeQuery(input string, state *ConnectionState) Response {
	query := input
	if strings.HasPrefix(input, "{") {
		req, err := DecodeRequest([]byte(input))
		if err != nil {
			return Response{Success: false, Error: fmt.Sprintf("bad request: %v", err)}
		}
		query = req.Query
	}

	// going through the executor directly keeps the context per connection;
	// adopting into the shared manager would leak one client's USE into all
	res := s.instance.Executor.Execute(context.Background(), query, core.ExecOptions{
		ActiveDatabase: state.database,
		SafeMode:       s.safeMode,
	})
	if res.Success {
		state.database = res.ActiveDatabase
	}

	resp := Response{
		Success:  res.Success,
		Type:     "query",
		Results:  toPayload(res),
		Warning:  res.Warning,
		Database: state.database,
		TimeMs:   res.ExecutionTimeSec * 1000,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}
