package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-nuki/internal/bridges/nuki"
	"github.com/nerrad567/gray-logic-nuki/internal/device"
)

// CommandRequest is the body of POST /devices/{nukiId}. Any subset of the
// fields may be set; at least one is required.
type CommandRequest struct {
	Locked         *bool `json:"locked"`
	Latched        *bool `json:"latched"`
	RingToOpen     *bool `json:"ringToOpen"`
	ContinuousMode *bool `json:"continuousMode"`
}

// commands maps the request onto device commands in a fixed order.
func (req CommandRequest) commands() []device.Command {
	var cmds []device.Command
	if req.Locked != nil {
		cmds = append(cmds, device.TargetLock(lockTarget(*req.Locked)))
	}
	if req.Latched != nil {
		cmds = append(cmds, device.TargetLatch(lockTarget(*req.Latched)))
	}
	if req.RingToOpen != nil {
		cmds = append(cmds, device.SetRingToOpen(*req.RingToOpen))
	}
	if req.ContinuousMode != nil {
		cmds = append(cmds, device.SetContinuousMode(*req.ContinuousMode))
	}
	return cmds
}

func lockTarget(secured bool) device.LockState {
	if secured {
		return device.LockSecured
	}
	return device.LockUnsecured
}

// CommandResponse is the body returned by POST /devices/{nukiId}.
type CommandResponse struct {
	NukiID  int                  `json:"nuki_id"`
	Results []nuki.CommandResult `json:"results"`
	Device  *device.Snapshot     `json:"device,omitempty"`
	Error   *ErrorBody           `json:"error,omitempty"`
}

// handleListDevices returns the snapshots of all known devices.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.controller.Store().List()
	respond(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns one device snapshot.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	nukiID, ok := parseNukiID(w, r)
	if !ok {
		return
	}

	snap, err := s.controller.Store().Get(nukiID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			fail(w, http.StatusNotFound, "device not found")
			return
		}
		fail(w, http.StatusInternalServerError, "failed to get device")
		return
	}
	respond(w, http.StatusOK, snap)
}

// handleCommandDevice applies the requested targets to one device and waits
// for each bridge result. Commands run one after the other; the response is
// 200 only when every command succeeded or needed no bridge request.
func (s *Server) handleCommandDevice(w http.ResponseWriter, r *http.Request) {
	nukiID, ok := parseNukiID(w, r)
	if !ok {
		return
	}
	if !s.controller.Store().Has(nukiID) {
		fail(w, http.StatusNotFound, "device not found")
		return
	}

	var req CommandRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cmds := req.commands()
	if len(cmds) == 0 {
		fail(w, http.StatusBadRequest, "no command given")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	resp := CommandResponse{NukiID: nukiID, Results: make([]nuki.CommandResult, 0, len(cmds))}
	allOK := true
	for _, cmd := range cmds {
		res, err := s.controller.ExecuteAndWait(ctx, nukiID, cmd)
		if err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				fail(w, http.StatusNotFound, "device not found")
				return
			}
			res = nuki.CommandResult{NukiID: nukiID, Command: cmd.String(), Status: nuki.CommandFailed, Err: err}
		}
		if res.Err != nil && res.Reason == "" {
			res.Reason = res.Err.Error()
		}
		if res.Status != nuki.CommandSucceeded && res.Status != nuki.CommandIgnored {
			allOK = false
		}
		resp.Results = append(resp.Results, res)

		s.logger.Info("device command via API",
			"nuki_id", nukiID,
			"command", cmd.String(),
			"status", res.Status,
			"request_id", requestIDFrom(r.Context()),
		)
	}

	if snap, err := s.controller.Store().Get(nukiID); err == nil {
		resp.Device = &snap
	}

	if !allOK {
		resp.Error = &ErrorBody{Code: ErrCodeCommand, Message: "one or more commands failed"}
		respond(w, http.StatusBadRequest, resp)
		return
	}
	respond(w, http.StatusOK, resp)
}

// handleGetBridge returns the integration's view of the bridge.
func (s *Server) handleGetBridge(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, s.controller.Info())
}

// handleRefreshBridge queues a device listing.
func (s *Server) handleRefreshBridge(w http.ResponseWriter, _ *http.Request) {
	queued := s.controller.TriggerRefresh()
	respond(w, http.StatusAccepted, map[string]any{"queued": queued})
}

// handleRebootBridge queues a bridge reboot.
func (s *Server) handleRebootBridge(w http.ResponseWriter, _ *http.Request) {
	if err := s.controller.Reboot(); err != nil {
		if errors.Is(err, nuki.ErrRebootInProgress) {
			fail(w, http.StatusConflict, "reboot already in progress")
			return
		}
		fail(w, http.StatusInternalServerError, "failed to queue reboot")
		return
	}
	respond(w, http.StatusAccepted, map[string]any{"queued": true})
}

// parseNukiID reads the {nukiId} URL parameter, writing a 400 when it is
// not a positive integer.
func parseNukiID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "nukiId")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		fail(w, http.StatusBadRequest, fmt.Sprintf("invalid device id %q", raw))
		return 0, false
	}
	return id, true
}
