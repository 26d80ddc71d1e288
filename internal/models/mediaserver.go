package models

import (
	"fmt"
	"net/url"
	"strings"
)

// MediaServer is a locally registered media server that invitations can target.
// The type tag selects the provider client via the registry.
type MediaServer struct {
	base
	name       string
	serverType string
	url        string
}

// NewMediaServer creates a media server record.
func NewMediaServer(sequence int, name, serverType, serverURL string) *MediaServer {
	return &MediaServer{
		base:       newBase(sequence),
		name:       name,
		serverType: serverType,
		url:        serverURL,
	}
}

func (m *MediaServer) Name() string { return m.name }
func (m *MediaServer) ServerType() string { return m.serverType }
func (m *MediaServer) URL() string { return m.url }

func (m *MediaServer) SetName(name string) { m.name = name }
func (m *MediaServer) SetURL(serverURL string) { m.url = serverURL }

// Validate checks if the server record's data is valid.
func (m *MediaServer) Validate() error {
	if strings.TrimSpace(m.name) == "" {
		return fmt.Errorf("server name is required")
	}
	if strings.TrimSpace(m.serverType) == "" {
		return fmt.Errorf("server type is required")
	}
	if _, err := url.ParseRequestURI(m.url); err != nil {
		return fmt.Errorf("server url is invalid: %w", err)
	}
	return nil
}
