package studio

import (
	"context"
	"log/slog"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/ipc"
	"github.com/meow-stack/meow-studio/internal/zoom"
)

// IPCHandler implements ipc.Handler on top of a Service.
type IPCHandler struct {
	svc    *Service
	logger *slog.Logger
}

// NewIPCHandler creates a new IPC handler.
func NewIPCHandler(svc *Service, logger *slog.Logger) *IPCHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IPCHandler{
		svc:    svc,
		logger: logger.With("component", "ipc-handler"),
	}
}

// HandleDrop imports a dropped payload.
func (h *IPCHandler) HandleDrop(ctx context.Context, msg *ipc.DropMessage) any {
	accepted, err := h.svc.Drop(ctx, msg.Payload)
	if err != nil {
		return errorMessage(err)
	}
	return &ipc.DroppedMessage{Type: ipc.MsgDropped, Accepted: accepted}
}

// HandleWheel applies a wheel event. Events the zoom glue does not claim
// are answered with Handled false and the unchanged level.
func (h *IPCHandler) HandleWheel(ctx context.Context, msg *ipc.WheelMessage) any {
	mods, ok := zoom.ParseModifiers(msg.Modifiers)
	if !ok {
		return errorMessage(serrors.UnknownModifiers(msg.Modifiers))
	}

	level, handled, err := h.svc.Wheel(ctx, zoom.WheelEvent{
		Canvas:    msg.Canvas,
		Delta:     msg.Delta,
		Modifiers: mods,
	})
	if err != nil && !handled {
		return errorMessage(err)
	}
	if err != nil {
		// The level is applied; only persisting it failed.
		h.logger.Warn("zoom level not persisted", "canvas", msg.Canvas, "error", err)
	}
	return &ipc.ZoomMessage{Type: ipc.MsgZoom, Canvas: msg.Canvas, Level: level, Handled: handled}
}

// HandleGetZoom returns a canvas zoom level.
func (h *IPCHandler) HandleGetZoom(ctx context.Context, msg *ipc.GetZoomMessage) any {
	level, err := h.svc.Zoom().Level(ctx, msg.Canvas)
	if err != nil {
		return errorMessage(err)
	}
	return &ipc.ZoomMessage{Type: ipc.MsgZoom, Canvas: msg.Canvas, Level: level}
}

// HandleSave saves the component carried by the message.
func (h *IPCHandler) HandleSave(ctx context.Context, msg *ipc.SaveMessage) any {
	h.logger.Info("handling save", "save_id", msg.SaveID, "target", msg.Target)

	res, err := h.svc.Save(ctx, msg.SaveID, msg.Component, msg.Target)
	if err != nil {
		h.logger.Error("save failed", "save_id", msg.SaveID, "error", err)
		return errorMessage(err)
	}
	return &ipc.SavedMessage{
		Type:       ipc.MsgSaved,
		SaveID:     msg.SaveID,
		Mode:       string(res.Mode),
		Dir:        res.Dir,
		Relocation: res.Relocation,
		Stats:      res.Stats,
	}
}

// HandleCancel cancels a running save.
func (h *IPCHandler) HandleCancel(ctx context.Context, msg *ipc.CancelMessage) any {
	if !h.svc.Cancel(msg.SaveID) {
		return errorMessage(serrors.SaveNotRunning(msg.SaveID))
	}
	return &ipc.AckMessage{Type: ipc.MsgAck, Success: true}
}

func errorMessage(err error) *ipc.ErrorMessage {
	return &ipc.ErrorMessage{
		Type:    ipc.MsgError,
		Code:    serrors.Code(err),
		Message: err.Error(),
	}
}
