package handlers

import (
	"net/http"

	"github.com/henryproto/turnstile-emu/internal/adminserver"
)

// DeviceStatus is the narrow status dependency: the running device
// reports its current turnstile state and configured identity. Defined
// here (rather than imported from internal/device) so this package has
// no dependency on the orchestration layer; internal/device.Device
// satisfies this by structural typing.
type DeviceStatus interface {
	DeviceID() int
	State() string
	ConnectedPeer() (string, bool)
}

// StatusHandler serves GET /status with a live snapshot of the device.
type StatusHandler struct {
	device DeviceStatus
}

// NewStatusHandler creates a status handler.
func NewStatusHandler(device DeviceStatus) *StatusHandler {
	return &StatusHandler{device: device}
}

// StatusResponse is the /status payload shape.
type StatusResponse struct {
	DeviceID  int    `json:"device_id"`
	State     string `json:"state"`
	Peer      string `json:"peer,omitempty"`
	Connected bool   `json:"connected"`
}

func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.device == nil {
		adminserver.JSON(w, http.StatusServiceUnavailable, adminserver.UnhealthyResponse("device not running"))
		return
	}
	peer, connected := h.device.ConnectedPeer()
	adminserver.JSON(w, http.StatusOK, adminserver.OKResponse(StatusResponse{
		DeviceID:  h.device.DeviceID(),
		State:     h.device.State(),
		Peer:      peer,
		Connected: connected,
	}))
}
