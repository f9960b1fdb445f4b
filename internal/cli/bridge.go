package cli

import (
	"context"

	"github.com/samber/lo"

	"github.com/tabctl/tabctl/internal/browser"
	"github.com/tabctl/tabctl/internal/cdp"
	"github.com/tabctl/tabctl/internal/reconcile"
	"github.com/tabctl/tabctl/internal/state"
)

// bridge bundles what every command needs per invocation: the state store,
// the resolved endpoint, and the one live protocol client.
type bridge struct {
	globals   *Globals
	store     *state.Store
	persisted *state.Connection
	endpoint  *browser.Endpoint
	client    *cdp.Client
}

func openStore(globals *Globals) (*state.Store, error) {
	if globals.StateDir != "" {
		return state.Open(globals.StateDir)
	}
	return state.OpenDefault()
}

// openBridge resolves a live browser and dials it.
func openBridge(ctx context.Context, globals *Globals) (*bridge, error) {
	store, err := openStore(globals)
	if err != nil {
		return nil, err
	}
	persisted, err := store.LoadConnection()
	if err != nil {
		// Corruption is its own failure; it must not pass for "never
		// connected".
		return nil, err
	}

	endpoint, err := browser.Resolve(ctx, browser.ResolveOptions{
		WSEndpoint:   globals.Endpoint,
		Host:         globals.Host,
		Port:         globals.Port,
		Persisted:    persisted,
		ProbeTimeout: globals.ProbeTimeout(),
	})
	if err != nil {
		return nil, err
	}
	globals.Debug("resolved browser endpoint %s", endpoint.WSURL)

	client, err := cdp.Dial(ctx, endpoint.WSURL, globals.logger.wire())
	if err != nil {
		return nil, err
	}

	return &bridge{
		globals:   globals,
		store:     store,
		persisted: persisted,
		endpoint:  endpoint,
		client:    client,
	}, nil
}

func (b *bridge) close() {
	if b.client != nil {
		b.client.Close()
	}
}

type targetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// targets enumerates via the protocol rather than the discovery endpoint;
// the socket is already open and the answer is the same unordered list.
func (b *bridge) targets(ctx context.Context) ([]browser.Target, error) {
	var res struct {
		TargetInfos []targetInfo `json:"targetInfos"`
	}
	if err := b.client.Execute(ctx, "Target.getTargets", nil, &res); err != nil {
		return nil, err
	}
	return lo.Map(res.TargetInfos, func(ti targetInfo, _ int) browser.Target {
		return browser.Target{ID: ti.TargetID, Type: ti.Type, Title: ti.Title, URL: ti.URL}
	}), nil
}

// attach resolves a target, opens a session on it, and replays the
// persisted emulation overrides into the fresh session.
func (b *bridge) attach(ctx context.Context, selector string) (*cdp.Session, *browser.Target, error) {
	targets, err := b.targets(ctx)
	if err != nil {
		return nil, nil, err
	}

	lastActive := ""
	if b.persisted != nil {
		lastActive = b.persisted.ActiveTargetID
	}
	target, err := browser.ResolveTarget(targets, selector, lastActive)
	if err != nil {
		return nil, nil, err
	}

	sess, err := b.client.Attach(ctx, target.ID)
	if err != nil {
		return nil, nil, err
	}

	em, err := b.store.LoadEmulation()
	if err != nil {
		return nil, nil, err
	}
	if err := reconcile.Apply(ctx, sess, em); err != nil {
		return nil, nil, err
	}
	return sess, target, nil
}

// rememberActiveTarget records the last activated target in the
// connection document, read-modify-write.
func (b *bridge) rememberActiveTarget(targetID string) error {
	conn, err := b.store.LoadConnection()
	if err != nil {
		return err
	}
	if conn == nil {
		conn = &state.Connection{}
	}
	conn.ActiveTargetID = targetID
	return b.store.SaveConnection(conn)
}
