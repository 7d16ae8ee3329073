package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Handler processes IPC requests and returns responses.
// Implementations should be safe for concurrent use.
type Handler interface {
	// HandleDrop processes text dropped onto the editor.
	// Returns a DroppedMessage or ErrorMessage.
	HandleDrop(ctx context.Context, msg *DropMessage) any

	// HandleWheel applies a mouse-wheel event to a canvas zoom level.
	// Returns a ZoomMessage or ErrorMessage.
	HandleWheel(ctx context.Context, msg *WheelMessage) any

	// HandleGetZoom returns a canvas zoom level.
	// Returns a ZoomMessage or ErrorMessage.
	HandleGetZoom(ctx context.Context, msg *GetZoomMessage) any

	// HandleSave saves a component. It blocks until the save finishes.
	// Returns a SavedMessage or ErrorMessage.
	HandleSave(ctx context.Context, msg *SaveMessage) any

	// HandleCancel cancels a running save.
	// Returns an AckMessage or ErrorMessage.
	HandleCancel(ctx context.Context, msg *CancelMessage) any
}

// Server listens for IPC messages on a Unix domain socket.
type Server struct {
	socketPath string
	handler    Handler
	logger     *slog.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
	conns    map[net.Conn]struct{}
}

// NewServer creates an IPC server listening on socketPath.
func NewServer(socketPath string, handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handler:    handler,
		logger:     logger.With("component", "ipc-server"),
		conns:      make(map[net.Conn]struct{}),
	}
}

// Path returns the path to the Unix socket.
func (s *Server) Path() string {
	return s.socketPath
}

// Start begins listening for connections.
// This method blocks until the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.listen(); err != nil {
		return err
	}

	// Accept connections until shutdown
	go s.acceptLoop(ctx)

	// Wait for context cancellation
	<-ctx.Done()

	return s.Shutdown()
}

// StartAsync starts the server in the background and returns immediately.
// Use Shutdown() to stop the server.
func (s *Server) StartAsync(ctx context.Context) error {
	if err := s.listen(); err != nil {
		return err
	}

	// Accept connections in background
	go s.acceptLoop(ctx)

	return nil
}

func (s *Server) listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// Remove any stale socket file
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create socket: %w", err)
	}
	s.listener = listener

	s.logger.Info("IPC server started", "socket", s.socketPath)
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.shutdown = true
	// Unblock idle readers. A request already being handled runs to
	// completion.
	for conn := range s.conns {
		conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	s.logger.Info("IPC server shutting down")

	// Close listener to stop accepting new connections
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error("error closing listener", "error", err)
		}
	}

	// Wait for all connections to finish
	s.wg.Wait()

	// Remove socket file
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("error removing socket", "error", err)
	}

	s.logger.Info("IPC server stopped")
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()

			if shutdown {
				return
			}

			// Check if context was cancelled
			select {
			case <-ctx.Done():
				return
			default:
			}

			s.logger.Error("accept error", "error", err)
			continue
		}

		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	for {
		// Check context
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Read one line (one message)
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrDeadlineExceeded) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		// Parse and handle the message
		response := s.handleMessage(ctx, line)

		// Send response
		if err := s.sendResponse(conn, response); err != nil {
			s.logger.Error("write error", "error", err)
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, data []byte) any {
	msg, err := ParseMessage(data)
	if err != nil {
		s.logger.Error("parse error", "error", err, "data", string(data))
		return &ErrorMessage{
			Type:    MsgError,
			Message: fmt.Sprintf("failed to parse message: %v", err),
		}
	}

	switch m := msg.(type) {
	case *PingMessage:
		return &AckMessage{Type: MsgAck, Success: true}

	case *DropMessage:
		s.logger.Debug("handling drop", "bytes", len(m.Payload))
		return s.handler.HandleDrop(ctx, m)

	case *WheelMessage:
		s.logger.Debug("handling wheel", "canvas", m.Canvas, "delta", m.Delta, "modifiers", m.Modifiers)
		return s.handler.HandleWheel(ctx, m)

	case *GetZoomMessage:
		s.logger.Debug("handling get_zoom", "canvas", m.Canvas)
		return s.handler.HandleGetZoom(ctx, m)

	case *SaveMessage:
		s.logger.Debug("handling save", "save_id", m.SaveID, "target", m.Target)
		return s.handler.HandleSave(ctx, m)

	case *CancelMessage:
		s.logger.Debug("handling cancel", "save_id", m.SaveID)
		return s.handler.HandleCancel(ctx, m)

	default:
		s.logger.Error("unexpected message type", "type", fmt.Sprintf("%T", msg))
		return &ErrorMessage{
			Type:    MsgError,
			Message: fmt.Sprintf("unexpected message type: %T", msg),
		}
	}
}

func (s *Server) sendResponse(conn net.Conn, response any) error {
	data, err := Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	// Add newline delimiter
	data = append(data, '\n')

	_, err = conn.Write(data)
	return err
}
