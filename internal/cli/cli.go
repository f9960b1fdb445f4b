package cli

// CLI is the root kong command tree.
type CLI struct {
	Format   string `help:"Output format: auto, text, ndjson" enum:"auto,text,ndjson" default:"${config_format}"`
	Verbose  bool   `short:"v" help:"Enable verbose debug logging (includes wire frames)"`
	Quiet    bool   `short:"q" help:"Suppress non-essential output"`
	Endpoint string `help:"Explicit WebSocket debugger URL (used without verification)"`
	Host     string `default:"${config_host}" help:"Browser host"`
	Port     int    `short:"p" default:"${config_port}" help:"Remote debugging port (0 = resolve automatically)"`

	Connect    ConnectCmd    `cmd:"" help:"Find a debuggable browser and remember how to reach it"`
	Disconnect DisconnectCmd `cmd:"" help:"Forget the persisted browser connection"`
	Status     StatusCmd     `cmd:"" help:"Show connection, browser, and target summary"`
	Targets    TargetsCmd    `cmd:"" aliases:"tabs" help:"List the browser's targets"`
	Activate   ActivateCmd   `cmd:"" help:"Bring a target to the front and verify it took"`
	Open       OpenCmd       `cmd:"" help:"Open a new tab"`
	Close      CloseCmd      `cmd:"" help:"Close a tab"`
	Nav        NavCmd        `cmd:"" help:"Navigate a tab and wait for the load to settle"`
	Snapshot   SnapshotCmd   `cmd:"" help:"Capture the page's accessibility tree with stable refs"`
	Inspect    InspectCmd    `cmd:"" help:"Describe the element behind a snapshot ref"`
	Console    ConsoleCmd    `cmd:"" help:"Collect console and log activity, including the pre-connect backlog"`
	Net        NetCmd        `cmd:"" help:"Collect a burst of network activity until it goes idle"`
	Emulate    EmulateCmd    `cmd:"" help:"Set or reset environment overrides replayed into every session"`
	Config     ConfigCmd     `cmd:"" help:"Configuration inspection"`
}
