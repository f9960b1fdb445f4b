package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/tabctl/tabctl/internal/state"
)

// ConnectCmd resolves a live browser, proves the socket works, and writes
// the connection record a later invocation will resolve through.
type ConnectCmd struct{}

func (c *ConnectCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	// A version round trip over the socket, not just the dial, is the
	// proof the endpoint actually speaks the protocol.
	var version struct {
		Product string `json:"product"`
	}
	if err := b.client.Execute(ctx, "Browser.getVersion", nil, &version); err != nil {
		return fail(globals, err)
	}

	rec := b.persisted
	if rec == nil {
		rec = &state.Connection{}
	}
	rec.WSEndpoint = b.endpoint.WSURL
	rec.Host = b.endpoint.Host
	rec.Port = b.endpoint.Port
	rec.Browser = version.Product
	rec.ConnectedAt = time.Now().UTC().Format(time.RFC3339)
	if err := b.store.SaveConnection(rec); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("connected", map[string]any{
			"browser":     version.Product,
			"ws_endpoint": b.endpoint.WSURL,
			"host":        b.endpoint.Host,
			"port":        b.endpoint.Port,
		})
	}
	fmt.Fprintf(globals.Stdout, "Connected to %s at %s:%d\n", version.Product, b.endpoint.Host, b.endpoint.Port)
	return nil
}

// DisconnectCmd deletes the persisted connection record. The browser keeps
// running; only the resolution shortcut goes away.
type DisconnectCmd struct{}

func (c *DisconnectCmd) Run(globals *Globals) error {
	store, err := openStore(globals)
	if err != nil {
		return fail(globals, err)
	}
	if err := store.DeleteConnection(); err != nil {
		return fail(globals, err)
	}
	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("disconnected", nil)
	}
	fmt.Fprintln(globals.Stdout, "Disconnected")
	return nil
}
