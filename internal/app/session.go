package app

import (
	"fmt"
	"net/http"

	"github.com/hrustic/seedhub/internal/api"
	"github.com/hrustic/seedhub/internal/authtransport"
	"github.com/hrustic/seedhub/internal/session"
)

// Session bundles the wired session stack. Both the CLI commands and the
// gateway build on the same assembly.
type Session struct {
	Store       *session.Store
	Bridge      *session.Bridge
	Coordinator *session.Coordinator
	Client      *api.Client

	// Transport authenticates any extra HTTP traffic, e.g. the gateway's
	// API proxy.
	Transport *authtransport.Transport
}

// BuildSession wires store, bridge, client, and coordinator from
// configuration. No I/O happens here; call Bridge.Load to populate the
// store from durable storage.
//
// The wiring has a deliberate cycle: the coordinator calls the API
// through the authenticating transport, and the transport calls back
// into the coordinator to refresh on 401. The transport is constructed
// first and the refresher bound last.
func BuildSession(cfg *Config) (*Session, error) {
	backend, err := cfg.Session.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create session storage: %w", err)
	}

	store := session.NewStore()

	bridge, err := session.NewBridge(store, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create persistence bridge: %w", err)
	}

	transport := authtransport.New(store)
	transport.Base = http.DefaultTransport

	client, err := api.New(cfg.Upstream.BaseURL, api.WithTransport(transport))
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	coordinator, err := session.NewCoordinator(client, store, bridge)
	if err != nil {
		return nil, fmt.Errorf("failed to create session coordinator: %w", err)
	}
	transport.Refresher = coordinator

	return &Session{
		Store:       store,
		Bridge:      bridge,
		Coordinator: coordinator,
		Client:      client,
		Transport:   transport,
	}, nil
}
