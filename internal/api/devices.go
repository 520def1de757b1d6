package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/cem-dashboard/internal/model"
)

// ErrEmptySKI is returned when the backend answers without a local SKI.
var ErrEmptySKI = errors.New("backend returned empty ski")

// GetDiscoveredDevices fetches the devices currently visible over mDNS.
// The backend answers with either a bare array or {"devices": [...]}.
func (c *Client) GetDiscoveredDevices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	err := c.get(ctx, "/api/mdns/discovery", func(body []byte) (err error) {
		devices, err = model.DecodeDevices(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get discovered devices: %w", err)
	}
	return devices, nil
}

// LocalSKIResponse is the body of GET /api/ski/local.
type LocalSKIResponse struct {
	SKI string `json:"ski"`
}

// GetLocalSKI fetches the backend's own SKI.
func (c *Client) GetLocalSKI(ctx context.Context) (string, error) {
	var resp LocalSKIResponse
	err := c.get(ctx, "/api/ski/local", func(body []byte) error {
		return json.Unmarshal(body, &resp)
	})
	if err != nil {
		return "", fmt.Errorf("get local ski: %w", err)
	}
	if resp.SKI == "" {
		return "", ErrEmptySKI
	}
	return resp.SKI, nil
}
