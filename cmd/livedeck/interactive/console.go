// Package interactive provides the interactive command-line interface
// for the livedeck panel.
package interactive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/livedeck/livedeck-go/pkg/connection"
	"github.com/livedeck/livedeck-go/pkg/discovery"
	"github.com/livedeck/livedeck-go/pkg/obs"
	"github.com/livedeck/livedeck-go/pkg/statecache"
	"github.com/livedeck/livedeck-go/pkg/transport"
)

// DefaultCommandTimeout bounds a single console command.
const DefaultCommandTimeout = 40 * time.Second

// Panel is the part of the controller the console drives.
type Panel interface {
	Connect(ctx context.Context, address, password string) error
	Reconnect(ctx context.Context) error
	Disconnect() error
	Status() connection.Status
	LastError() error
	AddStatusListener(fn func(connection.Status)) func()
	Subscribe(event string, fn transport.Handler) func()

	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
	FullState(ctx context.Context) statecache.Snapshot
	Version(ctx context.Context) (obs.VersionResponse, error)
	SceneList(ctx context.Context) (scenes []string, current string, err error)
	SetCurrentScene(ctx context.Context, scene string) error
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	ToggleStream(ctx context.Context) (bool, error)
	StartRecord(ctx context.Context) error
	StopRecord(ctx context.Context) error
	ToggleRecord(ctx context.Context) (bool, error)
	SetSourceEnabled(ctx context.Context, scene, source string, enabled bool) error
}

// Finder discovers mixers on the local network.
type Finder interface {
	Find(ctx context.Context) ([]discovery.Target, error)
}

// Defaults are used by a bare "connect".
type Defaults struct {
	Address  string
	Password string
}

// Console handles interactive mode for livedeck.
type Console struct {
	panel    Panel
	finder   Finder
	defaults Defaults
	timeout  time.Duration

	rl  *readline.Instance
	out io.Writer

	mu         sync.Mutex
	discovered []discovery.Target
	unsubs     []func()
	closeOnce  sync.Once
}

// New creates the console and its readline instance. Attach must be called
// before Run.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "livedeck> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{
		rl:      rl,
		out:     rl.Stdout(),
		timeout: DefaultCommandTimeout,
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Notify prints an operator notification.
func (c *Console) Notify(message string) {
	fmt.Fprintf(c.out, "! %s\n", message)
}

// Attach connects the console to the panel. finder may be nil, which
// disables the discover command.
func (c *Console) Attach(panel Panel, finder Finder, defaults Defaults) {
	c.panel = panel
	c.finder = finder
	c.defaults = defaults

	c.unsubs = append(c.unsubs,
		panel.AddStatusListener(func(s connection.Status) {
			fmt.Fprintf(c.out, "[STATUS] %s\n", s)
		}),
		panel.Subscribe(obs.EventCurrentProgramSceneChanged, c.handleEvent),
		panel.Subscribe(obs.EventStreamStateChanged, c.handleEvent),
		panel.Subscribe(obs.EventRecordStateChanged, c.handleEvent),
	)
}

// Close detaches from the panel and releases the terminal.
// It is safe to call more than once.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
		c.unsubs = nil
		if c.rl != nil {
			err = c.rl.Close()
		}
	})
	return err
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if quit := c.exec(ctx, line); quit {
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *Console) exec(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "connect", "c":
		c.cmdConnect(ctx, args)

	case "reconnect":
		c.report(c.panel.Reconnect(ctx))

	case "disconnect", "dc":
		c.report(c.panel.Disconnect())

	case "status", "st":
		c.cmdStatus()

	case "state", "s":
		c.cmdState(ctx)

	case "version", "v":
		c.cmdVersion(ctx)

	case "scenes":
		c.cmdScenes(ctx)

	case "scene":
		c.cmdScene(ctx, args)

	case "stream":
		c.cmdOutput(ctx, "stream", args, c.panel.StartStream, c.panel.StopStream, c.panel.ToggleStream)

	case "record", "rec":
		c.cmdOutput(ctx, "record", args, c.panel.StartRecord, c.panel.StopRecord, c.panel.ToggleRecord)

	case "source", "src":
		c.cmdSource(ctx, args)

	case "call":
		c.cmdCall(ctx, args)

	case "discover", "d":
		c.cmdDiscover(ctx)

	case "quit", "exit", "q":
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
livedeck Commands:
  Connection:
    connect [url|#n] [password] - Connect to a mixer (default: configured address)
    reconnect                   - Retry with the last connect options
    disconnect                  - Close the connection
    status                      - Show connection status
    discover                    - Browse the local network for mixers

  Mixer:
    state                       - Show the cached mixer state
    version                     - Show mixer and plugin versions
    scenes                      - List scenes
    scene <name>                - Switch the program scene
    stream start|stop|toggle    - Control streaming
    record start|stop|toggle    - Control recording
    source on|off <name>        - Show or hide a source in the current scene
    call <request> [json]       - Send a raw request

  Other:
    help                        - Show this help
    quit                        - Exit`)
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "OK")
}

func (c *Console) cmdConnect(ctx context.Context, args []string) {
	address := c.defaults.Address
	password := c.defaults.Password

	if len(args) > 0 {
		target := args[0]
		if strings.HasPrefix(target, "#") {
			url, err := c.discoveredURL(target[1:])
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
				return
			}
			target = url
		}
		address = target
	}
	if len(args) > 1 {
		password = args[1]
	}
	if address == "" {
		fmt.Fprintln(c.out, "Usage: connect <url|#n> [password]")
		return
	}

	fmt.Fprintf(c.out, "Connecting to %s...\n", address)
	c.report(c.panel.Connect(ctx, address, password))
}

func (c *Console) discoveredURL(index string) (string, error) {
	n, err := strconv.Atoi(index)
	if err != nil {
		return "", fmt.Errorf("invalid mixer number: %s", index)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 || n > len(c.discovered) {
		return "", fmt.Errorf("no discovered mixer #%d (run 'discover' first)", n)
	}
	return c.discovered[n-1].URL()
}

func (c *Console) cmdStatus() {
	fmt.Fprintf(c.out, "Status: %s\n", c.panel.Status())
	if err := c.panel.LastError(); err != nil {
		fmt.Fprintf(c.out, "Last error: %v\n", err)
	}
}

func (c *Console) cmdState(ctx context.Context) {
	snap := c.panel.FullState(ctx)

	fmt.Fprintf(c.out, "Scene:     %s\n", orNone(snap.CurrentScene))
	fmt.Fprintf(c.out, "Streaming: %s\n", onOff(snap.Streaming))
	fmt.Fprintf(c.out, "Recording: %s\n", onOff(snap.Recording))
	fmt.Fprintf(c.out, "Scenes:    %d\n", len(snap.Scenes))
	if len(snap.Sources) > 0 {
		fmt.Fprintln(c.out, "Sources:")
		for _, src := range snap.Sources {
			fmt.Fprintf(c.out, "  [%s] %s", checkbox(src.Enabled), src.Name)
			if src.Kind != "" {
				fmt.Fprintf(c.out, " (%s)", src.Kind)
			}
			fmt.Fprintln(c.out)
		}
	}
	if !snap.CapturedAt.IsZero() {
		fmt.Fprintf(c.out, "Captured:  %s\n", snap.CapturedAt.Format(time.TimeOnly))
	}
}

func (c *Console) cmdVersion(ctx context.Context) {
	v, err := c.panel.Version(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Mixer:     %s\n", v.OBSVersion)
	fmt.Fprintf(c.out, "WebSocket: %s (rpc %d)\n", v.OBSWebSocketVersion, v.RPCVersion)
	if v.Platform != "" {
		fmt.Fprintf(c.out, "Platform:  %s\n", v.Platform)
	}
}

func (c *Console) cmdScenes(ctx context.Context) {
	scenes, current, err := c.panel.SceneList(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(scenes) == 0 {
		fmt.Fprintln(c.out, "No scenes")
		return
	}
	for i, name := range scenes {
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %2d. %s\n", marker, i+1, name)
	}
}

func (c *Console) cmdScene(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: scene <name>")
		return
	}
	c.report(c.panel.SetCurrentScene(ctx, strings.Join(args, " ")))
}

func (c *Console) cmdOutput(ctx context.Context, name string, args []string,
	start, stop func(context.Context) error, toggle func(context.Context) (bool, error)) {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Usage: %s start|stop|toggle\n", name)
		return
	}

	switch strings.ToLower(args[0]) {
	case "start":
		c.report(start(ctx))
	case "stop":
		c.report(stop(ctx))
	case "toggle":
		active, err := toggle(ctx)
		if err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintf(c.out, "%s is now %s\n", name, onOff(active))
	default:
		fmt.Fprintf(c.out, "Usage: %s start|stop|toggle\n", name)
	}
}

func (c *Console) cmdSource(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "Usage: source on|off <name>")
		return
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "show":
		enabled = true
	case "off", "hide":
		enabled = false
	default:
		fmt.Fprintln(c.out, "Usage: source on|off <name>")
		return
	}
	c.report(c.panel.SetSourceEnabled(ctx, "", strings.Join(args[1:], " "), enabled))
}

func (c *Console) cmdCall(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "Usage: call <request> [json]")
		return
	}

	var params any
	if len(args) > 1 {
		raw := json.RawMessage(strings.Join(args[1:], " "))
		if !json.Valid(raw) {
			fmt.Fprintln(c.out, "Error: request data is not valid JSON")
			return
		}
		params = raw
	}

	data, err := c.panel.Call(ctx, args[0], params)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if len(data) == 0 {
		fmt.Fprintln(c.out, "OK")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		fmt.Fprintln(c.out, string(data))
		return
	}
	fmt.Fprintln(c.out, pretty.String())
}

func (c *Console) cmdDiscover(ctx context.Context) {
	if c.finder == nil {
		fmt.Fprintln(c.out, "Discovery is not available")
		return
	}

	fmt.Fprintln(c.out, "Browsing for mixers...")
	targets, err := c.finder.Find(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	c.mu.Lock()
	c.discovered = targets
	c.mu.Unlock()

	if len(targets) == 0 {
		fmt.Fprintln(c.out, "No mixers found")
		return
	}
	for i, t := range targets {
		url, err := t.URL()
		if err != nil {
			url = "(no address)"
		}
		lock := ""
		if t.AuthRequired {
			lock = " [password]"
		}
		fmt.Fprintf(c.out, "  #%d %s  %s%s\n", i+1, t.Instance, url, lock)
	}
	fmt.Fprintln(c.out, "Use 'connect #n [password]' to connect.")
}

func (c *Console) handleEvent(ev transport.Event) {
	switch ev.Name {
	case obs.EventCurrentProgramSceneChanged:
		var data obs.SceneChangedEvent
		if err := json.Unmarshal(ev.Data, &data); err == nil {
			fmt.Fprintf(c.out, "[EVENT] Scene changed: %s\n", data.SceneName)
		}
	case obs.EventStreamStateChanged, obs.EventRecordStateChanged:
		var data obs.OutputStateChangedEvent
		if err := json.Unmarshal(ev.Data, &data); err == nil {
			fmt.Fprintf(c.out, "[EVENT] %s: %s\n", ev.Name, data.OutputState)
		}
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func checkbox(b bool) string {
	if b {
		return "x"
	}
	return " "
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
