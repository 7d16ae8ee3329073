package ipc

import (
	"bufio"
	"fmt"
	"net"
	"time"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/types"
)

// Client connects to an IPC server to send messages.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    30 * time.Second,
	}
}

// SetTimeout sets the connection and read/write timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}

// Send sends a message and waits for a response.
// The response is parsed and returned as the appropriate message type.
func (c *Client) Send(msg any) (any, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IPC socket %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	// Set deadline for the entire operation
	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	// Marshal and send message
	data, err := Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	// Add newline delimiter
	data = append(data, '\n')

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	// Read response
	reader := bufio.NewReader(conn)
	responseLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Parse response
	response, err := ParseMessage(responseLine)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return response, nil
}

// Ping checks that a server is listening.
func (c *Client) Ping() error {
	response, err := c.Send(&PingMessage{Type: MsgPing})
	if err != nil {
		return err
	}
	if _, ok := response.(*AckMessage); !ok {
		return unexpected(response)
	}
	return nil
}

// Drop forwards a drop payload. It reports whether the payload was
// imported.
func (c *Client) Drop(payload string) (bool, error) {
	response, err := c.Send(&DropMessage{Type: MsgDrop, Payload: payload})
	if err != nil {
		return false, err
	}
	if r, ok := response.(*DroppedMessage); ok {
		return r.Accepted, nil
	}
	return false, unexpected(response)
}

// Wheel forwards a wheel event and returns the resulting zoom state.
func (c *Client) Wheel(canvas string, delta int, modifiers string) (*ZoomMessage, error) {
	response, err := c.Send(&WheelMessage{
		Type:      MsgWheel,
		Canvas:    canvas,
		Delta:     delta,
		Modifiers: modifiers,
	})
	if err != nil {
		return nil, err
	}
	if r, ok := response.(*ZoomMessage); ok {
		return r, nil
	}
	return nil, unexpected(response)
}

// Zoom returns the zoom level of a canvas.
func (c *Client) Zoom(canvas string) (float64, error) {
	response, err := c.Send(&GetZoomMessage{Type: MsgGetZoom, Canvas: canvas})
	if err != nil {
		return 0, err
	}
	if r, ok := response.(*ZoomMessage); ok {
		return r.Level, nil
	}
	return 0, unexpected(response)
}

// Save asks the server to save comp at target ("MOUNT:/path").
func (c *Client) Save(saveID string, comp *types.Component, target string) (*SavedMessage, error) {
	response, err := c.Send(&SaveMessage{
		Type:      MsgSave,
		SaveID:    saveID,
		Component: comp,
		Target:    target,
	})
	if err != nil {
		return nil, err
	}
	if r, ok := response.(*SavedMessage); ok {
		return r, nil
	}
	return nil, unexpected(response)
}

// Cancel cancels the running save with saveID.
func (c *Client) Cancel(saveID string) error {
	response, err := c.Send(&CancelMessage{Type: MsgCancel, SaveID: saveID})
	if err != nil {
		return err
	}
	if r, ok := response.(*AckMessage); ok {
		if !r.Success {
			return fmt.Errorf("cancel was not successful")
		}
		return nil
	}
	return unexpected(response)
}

// unexpected turns an ErrorMessage back into a StudioError carrying its
// code, or reports an unexpected response type.
func unexpected(response any) error {
	if r, ok := response.(*ErrorMessage); ok {
		if r.Code != "" {
			return serrors.New(r.Code, r.Message)
		}
		return fmt.Errorf("server error: %s", r.Message)
	}
	return fmt.Errorf("unexpected response type: %T", response)
}
