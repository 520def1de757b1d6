package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/cem-dashboard/internal/model"
)

// Message types sent to the backend.
const (
	TypeGetLocalSKI     = "get_local_ski"
	TypeGetRemoteSKIs   = "get_remote_skis"
	TypeRegisterSKI     = "register_ski"
	TypeRegisterSKIs    = "register_skis"
	TypeGetLPP          = "get_lpp"
	TypeGetLPC          = "get_lpc"
	TypeGetLogLevel     = "get_log_level"
	TypeSetLogLevel     = "set_log_level"
	TypeMDNSDiscovery   = "mdns_discovery"
	TypeStartSimulation = "start_simulation"
	TypeStopSimulation  = "stop_simulation"
)

// TypeConnected is pushed by the backend once the channel is up.
const TypeConnected = "connected"

// ErrEmptySKI is returned for a blank SKI argument.
var ErrEmptySKI = errors.New("ski must not be empty")

// Requester is the slice of *connection.Client the service needs.
type Requester interface {
	Request(ctx context.Context, msgType string, data any) (json.RawMessage, error)
	Send(msgType string, data any) error
}

// Service issues typed dashboard requests over a Requester.
type Service struct {
	conn   Requester
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(conn Requester, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		conn:   conn,
		logger: logger.With("component", "dashboard"),
	}
}

type skiPayload struct {
	SKI string `json:"ski"`
}

type skisPayload struct {
	SKIs []string `json:"skis"`
}

type levelPayload struct {
	Level string `json:"level"`
}

type devicesPayload struct {
	Devices []string `json:"devices"`
}

// GetLocalSKI asks the backend for its own SKI.
func (s *Service) GetLocalSKI(ctx context.Context) (string, error) {
	var resp skiPayload
	if err := s.call(ctx, TypeGetLocalSKI, nil, &resp); err != nil {
		return "", err
	}
	return resp.SKI, nil
}

// GetRemoteSKIs lists the SKIs the backend currently trusts.
func (s *Service) GetRemoteSKIs(ctx context.Context) ([]string, error) {
	data, err := s.conn.Request(ctx, TypeGetRemoteSKIs, nil)
	if err != nil {
		return nil, err
	}

	var skis []string
	if err := json.Unmarshal(data, &skis); err != nil {
		var wrapped skisPayload
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", TypeGetRemoteSKIs, err)
		}
		skis = wrapped.SKIs
	}
	if skis == nil {
		skis = []string{}
	}
	return skis, nil
}

// RegisterSKI asks the backend to trust one remote SKI.
func (s *Service) RegisterSKI(ctx context.Context, ski string) error {
	if ski == "" {
		return ErrEmptySKI
	}
	if err := s.call(ctx, TypeRegisterSKI, skiPayload{SKI: ski}, nil); err != nil {
		return err
	}
	s.logger.Info("ski registered", "ski", ski)
	return nil
}

// RegisterSKIs asks the backend to trust several remote SKIs at once.
func (s *Service) RegisterSKIs(ctx context.Context, skis []string) error {
	for _, ski := range skis {
		if ski == "" {
			return ErrEmptySKI
		}
	}
	if err := s.call(ctx, TypeRegisterSKIs, skisPayload{SKIs: skis}, nil); err != nil {
		return err
	}
	s.logger.Info("skis registered", "count", len(skis))
	return nil
}

// GetLPP reads the production limit of a remote device.
func (s *Service) GetLPP(ctx context.Context, ski string) (model.PowerLimit, error) {
	return s.powerLimit(ctx, TypeGetLPP, ski)
}

// GetLPC reads the consumption limit of a remote device.
func (s *Service) GetLPC(ctx context.Context, ski string) (model.PowerLimit, error) {
	return s.powerLimit(ctx, TypeGetLPC, ski)
}

func (s *Service) powerLimit(ctx context.Context, msgType, ski string) (model.PowerLimit, error) {
	if ski == "" {
		return model.PowerLimit{}, ErrEmptySKI
	}

	var limit model.PowerLimit
	if err := s.call(ctx, msgType, skiPayload{SKI: ski}, &limit); err != nil {
		return model.PowerLimit{}, err
	}
	if limit.SKI == "" {
		limit.SKI = ski
	}
	return limit, nil
}

// GetLogLevel reads the backend log level.
func (s *Service) GetLogLevel(ctx context.Context) (string, error) {
	var resp levelPayload
	if err := s.call(ctx, TypeGetLogLevel, nil, &resp); err != nil {
		return "", err
	}
	return resp.Level, nil
}

// SetLogLevel changes the backend log level.
func (s *Service) SetLogLevel(ctx context.Context, level string) error {
	if err := s.call(ctx, TypeSetLogLevel, levelPayload{Level: level}, nil); err != nil {
		return err
	}
	s.logger.Info("backend log level changed", "level", level)
	return nil
}

// MDNSDiscovery asks the backend for the devices it sees over mDNS.
func (s *Service) MDNSDiscovery(ctx context.Context) ([]model.Device, error) {
	data, err := s.conn.Request(ctx, TypeMDNSDiscovery, nil)
	if err != nil {
		return nil, err
	}
	devices, err := model.DecodeDevices(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s response: %w", TypeMDNSDiscovery, err)
	}
	return devices, nil
}

// StartSimulation starts a simulation over the given device SKIs.
func (s *Service) StartSimulation(ctx context.Context, devices []string) error {
	if devices == nil {
		devices = []string{}
	}
	if err := s.call(ctx, TypeStartSimulation, devicesPayload{Devices: devices}, nil); err != nil {
		return err
	}
	s.logger.Info("simulation started", "devices", len(devices))
	return nil
}

// StopSimulation tells the backend to stop the simulation. The backend
// sends no reply.
func (s *Service) StopSimulation() error {
	if err := s.conn.Send(TypeStopSimulation, struct{}{}); err != nil {
		return err
	}
	s.logger.Info("simulation stop sent")
	return nil
}

// call performs one request and decodes the response into out when out is
// non-nil and the response carries data.
func (s *Service) call(ctx context.Context, msgType string, req any, out any) error {
	data, err := s.conn.Request(ctx, msgType, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", msgType, err)
	}
	return nil
}
