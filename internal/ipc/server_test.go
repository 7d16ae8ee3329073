package ipc

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/logging"
	"github.com/meow-stack/meow-studio/internal/types"
)

// mockHandler implements Handler for testing.
type mockHandler struct {
	mu sync.Mutex

	dropCalls   []*DropMessage
	wheelCalls  []*WheelMessage
	zoomCalls   []*GetZoomMessage
	saveCalls   []*SaveMessage
	cancelCalls []*CancelMessage

	// Configurable responses
	dropResponse   any
	wheelResponse  any
	zoomResponse   any
	saveResponse   any
	cancelResponse any
}

func newMockHandler() *mockHandler {
	return &mockHandler{
		dropResponse:   &DroppedMessage{Type: MsgDropped, Accepted: true},
		wheelResponse:  &ZoomMessage{Type: MsgZoom, Canvas: "graph", Level: 150, Handled: true},
		zoomResponse:   &ZoomMessage{Type: MsgZoom, Canvas: "graph", Level: 100},
		saveResponse:   &SavedMessage{Type: MsgSaved, Mode: "in-place", Dir: "/ws/a"},
		cancelResponse: &AckMessage{Type: MsgAck, Success: true},
	}
}

func (h *mockHandler) HandleDrop(ctx context.Context, msg *DropMessage) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropCalls = append(h.dropCalls, msg)
	return h.dropResponse
}

func (h *mockHandler) HandleWheel(ctx context.Context, msg *WheelMessage) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wheelCalls = append(h.wheelCalls, msg)
	return h.wheelResponse
}

func (h *mockHandler) HandleGetZoom(ctx context.Context, msg *GetZoomMessage) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.zoomCalls = append(h.zoomCalls, msg)
	return h.zoomResponse
}

func (h *mockHandler) HandleSave(ctx context.Context, msg *SaveMessage) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saveCalls = append(h.saveCalls, msg)
	return h.saveResponse
}

func (h *mockHandler) HandleCancel(ctx context.Context, msg *CancelMessage) any {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cancelCalls = append(h.cancelCalls, msg)
	return h.cancelResponse
}

// startServer starts a server on a temporary socket and shuts it down
// when the test ends.
func startServer(t *testing.T, handler Handler) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "studio.sock")
	server := NewServer(socketPath, handler, logging.NewForTest())

	ctx, cancel := context.WithCancel(context.Background())
	if err := server.StartAsync(ctx); err != nil {
		cancel()
		t.Fatalf("StartAsync() error: %v", err)
	}
	t.Cleanup(func() {
		server.Shutdown()
		cancel()
	})
	return socketPath
}

func TestServer_StartShutdown(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "run", "studio.sock")
	server := NewServer(socketPath, newMockHandler(), nil)

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	// The socket directory is created on demand.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("socket file should exist after start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("server did not shut down in time")
	}

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket file should be removed after shutdown")
	}
}

func TestServer_ReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "studio.sock")
	if err := os.WriteFile(socketPath, nil, 0600); err != nil {
		t.Fatal(err)
	}

	server := NewServer(socketPath, newMockHandler(), logging.NewForTest())
	if err := server.StartAsync(context.Background()); err != nil {
		t.Fatalf("StartAsync() error: %v", err)
	}
	defer server.Shutdown()

	if err := NewClient(socketPath).Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestServer_Ping(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	if err := NewClient(socketPath).Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestServer_HandleDrop(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	client := NewClient(socketPath)
	client.SetTimeout(5 * time.Second)

	accepted, err := client.Drop("file:///ws/components/normalize\n")
	if err != nil {
		t.Fatalf("Drop() error: %v", err)
	}
	if !accepted {
		t.Error("Drop() = false, want true")
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.dropCalls) != 1 {
		t.Fatalf("dropCalls = %d, want 1", len(handler.dropCalls))
	}
	if got := handler.dropCalls[0].Payload; got != "file:///ws/components/normalize\n" {
		t.Errorf("Payload = %q", got)
	}
}

func TestServer_HandleWheel(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	zoom, err := NewClient(socketPath).Wheel("graph", 1, "primary")
	if err != nil {
		t.Fatalf("Wheel() error: %v", err)
	}
	if zoom.Level != 150 || !zoom.Handled {
		t.Errorf("Wheel() = %+v, want level 150 handled", zoom)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.wheelCalls) != 1 {
		t.Fatalf("wheelCalls = %d, want 1", len(handler.wheelCalls))
	}
	call := handler.wheelCalls[0]
	if call.Canvas != "graph" || call.Delta != 1 || call.Modifiers != "primary" {
		t.Errorf("wheel call = %+v", call)
	}
}

func TestServer_HandleGetZoom(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	level, err := NewClient(socketPath).Zoom("graph")
	if err != nil {
		t.Fatalf("Zoom() error: %v", err)
	}
	if level != 100 {
		t.Errorf("Zoom() = %v, want 100", level)
	}
}

func TestServer_HandleSave(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	comp := types.NewComponent("Normalize", "wf-1")
	saved, err := NewClient(socketPath).Save("save-1", comp, "LOCAL:/a")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if saved.Mode != "in-place" || saved.Dir != "/ws/a" {
		t.Errorf("Save() = %+v", saved)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.saveCalls) != 1 {
		t.Fatalf("saveCalls = %d, want 1", len(handler.saveCalls))
	}
	call := handler.saveCalls[0]
	if call.SaveID != "save-1" || call.Target != "LOCAL:/a" {
		t.Errorf("save call = %+v", call)
	}
	if call.Component == nil || call.Component.TemplateID != comp.TemplateID {
		t.Errorf("component not carried: %+v", call.Component)
	}
}

func TestServer_HandleCancel(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	if err := NewClient(socketPath).Cancel("save-1"); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}

	handler.cancelResponse = &AckMessage{Type: MsgAck, Success: false}
	if err := NewClient(socketPath).Cancel("save-2"); err == nil {
		t.Error("Cancel() should fail on an unsuccessful ack")
	}
}

func TestServer_ErrorResponse(t *testing.T) {
	handler := newMockHandler()
	handler.saveResponse = &ErrorMessage{
		Type:    MsgError,
		Code:    serrors.CodeContractViolation,
		Message: "component moved",
	}
	socketPath := startServer(t, handler)

	_, err := NewClient(socketPath).Save("s", types.NewComponent("x", "wf"), "LOCAL:/a")
	if err == nil {
		t.Fatal("Save() should return error when server returns ErrorMessage")
	}
	if !serrors.HasCode(err, serrors.CodeContractViolation) {
		t.Errorf("error = %v, want code %s", err, serrors.CodeContractViolation)
	}

	handler.zoomResponse = &ErrorMessage{Type: MsgError, Message: "no canvas"}
	_, err = NewClient(socketPath).Zoom("graph")
	if err == nil || err.Error() != "server error: no canvas" {
		t.Errorf("error = %v, want 'server error: no canvas'", err)
	}
}

func TestServer_MultipleConnections(t *testing.T) {
	handler := newMockHandler()
	socketPath := startServer(t, handler)

	var wg sync.WaitGroup
	errors := make(chan error, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := NewClient(socketPath).Wheel("graph", 1, "primary"); err != nil {
				errors <- err
			}
		}()
	}

	wg.Wait()
	close(errors)

	for err := range errors {
		t.Errorf("concurrent request error: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.wheelCalls) != 10 {
		t.Errorf("wheelCalls = %d, want 10", len(handler.wheelCalls))
	}
}

func TestServer_InvalidMessage(t *testing.T) {
	socketPath := startServer(t, newMockHandler())

	response, err := NewClient(socketPath).Send(&struct {
		Type string `json:"type"`
	}{Type: "invalid_type"})
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	errMsg, ok := response.(*ErrorMessage)
	if !ok {
		t.Fatalf("response is %T, want *ErrorMessage", response)
	}
	if errMsg.Message == "" {
		t.Error("ErrorMessage.Message should not be empty")
	}
}

func TestServer_ShutdownWithIdleClient(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "studio.sock")
	server := NewServer(socketPath, newMockHandler(), logging.NewForTest())
	if err := server.StartAsync(context.Background()); err != nil {
		t.Fatalf("StartAsync() error: %v", err)
	}

	// A connected client that never sends must not block shutdown.
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		server.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown() blocked on an idle connection")
	}

	// Shutdown is idempotent.
	if err := server.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error: %v", err)
	}
}

func TestClient_ConnectionError(t *testing.T) {
	client := NewClient(filepath.Join(t.TempDir(), "nobody.sock"))
	client.SetTimeout(100 * time.Millisecond)

	if err := client.Ping(); err == nil {
		t.Fatal("Ping() should return error for non-existent socket")
	}
}
