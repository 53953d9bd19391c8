package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagepilot/pagepilot/internal/audit"
	"github.com/pagepilot/pagepilot/internal/browser"
	"github.com/pagepilot/pagepilot/internal/config"
	"github.com/pagepilot/pagepilot/internal/finder"
	"github.com/pagepilot/pagepilot/internal/interact"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// resolveConfig applies --config on top of the embedded defaults loaded by
// main and resolves the result.
func resolveConfig() config.Resolved {
	c := *RootConfig
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		c = loaded
	}
	r, err := c.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return r
}

// quietLogs silences internal logging so one-shot commands print clean
// output; -v restores the logs.
func quietLogs() {
	if !verbose {
		logging.Disable()
	}
}

// fail prints the error with any actionable hint and exits.
func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", browser.Hint(err))
	os.Exit(1)
}

// failConnect reports an endpoint discovery failure with a startup hint
// naming the port the config points at.
func failConnect(err error, r config.Resolved) {
	port := config.PortFromURL(r.EndpointURL)
	if port == 0 {
		port = config.DefaultCDPPort
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", browser.Hint(err))
	fmt.Fprintf(os.Stderr, "Is the browser running with --remote-debugging-port=%d, or the bridge up (pagepilot bridge)?\n", port)
	os.Exit(1)
}

// openTab connects to the configured endpoint and attaches to the selected
// tab: --target id wins, then --url substring, else the first page target.
func openTab(ctx context.Context, r config.Resolved) (browser.HandlerContext, browser.Target) {
	cctx, cancel := context.WithTimeout(ctx, r.ConnectTimeout)
	defer cancel()

	targets, err := browser.ListTargets(cctx, r.EndpointURL)
	if err != nil {
		failConnect(err, r)
	}

	id := targetID
	if id == "" {
		id = r.Target
	}
	contains := urlContains
	if contains == "" {
		contains = r.URLContains
	}
	t, err := browser.PickTarget(targets, id, contains)
	if err != nil {
		fail(err)
	}

	m := browser.GetManager()
	m.Configure(r.EndpointURL)
	hctx, err := m.Context(cctx, t.ID)
	if err != nil {
		fail(err)
	}
	return hctx, t
}

// openJournal opens the audit store, or returns nil when the journal is
// disabled or unavailable. A nil store accepts and drops every write.
func openJournal(r config.Resolved) *audit.Store {
	if !r.JournalEnabled {
		return nil
	}
	store, err := audit.Open(r.JournalPath)
	if err != nil {
		logging.Warnf("journal unavailable: %v", err)
		return nil
	}
	return store
}

// recordOutcome writes one journal entry for an executed interaction.
func recordOutcome(ctx context.Context, store *audit.Store, op, descriptor string, res *interact.ActionResult, opErr error) {
	e := audit.Entry{Op: op, Descriptor: descriptor, Outcome: "ok"}
	if res != nil {
		e.Tier = res.Tier
		e.Target = res.Target
		e.Duration = res.Duration
	}
	if opErr != nil {
		e.Outcome = "error"
		e.ErrorKind = string(browser.KindOf(opErr))
	}
	if err := store.Record(ctx, e); err != nil {
		logging.Warnf("journal write failed: %v", err)
	}
}

// targetFlags is the element-description surface shared by resolve and the
// interaction commands.
type targetFlags struct {
	cmd    *cobra.Command
	tag    string
	text   string
	attrs  []string
	box    string
	index  int
	coords string
}

// addTargetFlags registers the descriptor flags on the command.
func addTargetFlags(cmd *cobra.Command) *targetFlags {
	f := &targetFlags{cmd: cmd}
	fl := cmd.Flags()
	fl.StringVar(&f.tag, "tag", "", "tag name to match (button, input, a, ...)")
	fl.StringVar(&f.text, "text", "", "visible text to match")
	fl.StringArrayVar(&f.attrs, "attr", nil, "attribute to match as key=value (repeatable)")
	fl.StringVar(&f.box, "box", "", "expected location as x,y,w,h")
	fl.IntVar(&f.index, "index", 0, "sibling position, used to break near ties")
	return f
}

// addCoordsFlag adds the raw-coordinate fallback. Resolve has no coordinate
// tier, so only interaction commands register it.
func (f *targetFlags) addCoordsFlag() {
	f.cmd.Flags().StringVar(&f.coords, "coords", "", "raw page coordinates as x,y (last-resort tier)")
}

// descriptor builds the finder descriptor from the parsed flags.
func (f *targetFlags) descriptor() (finder.Descriptor, error) {
	d := finder.Descriptor{Tag: f.tag, Text: f.text}
	if len(f.attrs) > 0 {
		d.Attrs = make(map[string]string, len(f.attrs))
		for _, pair := range f.attrs {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || k == "" {
				return finder.Descriptor{}, fmt.Errorf("--attr wants key=value, got %q", pair)
			}
			d.Attrs[k] = v
		}
	}
	if f.box != "" {
		vals, err := parseFloats(f.box, 4)
		if err != nil {
			return finder.Descriptor{}, fmt.Errorf("--box wants x,y,w,h: %w", err)
		}
		d.Box = &finder.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	}
	if f.cmd.Flags().Changed("index") {
		idx := f.index
		d.SiblingIndex = &idx
	}
	return d, nil
}

// request builds the ladder request: descriptor plus optional coordinates.
// An all-empty request is legal here; commands that need a target enforce it
// through mustRequest.
func (f *targetFlags) request() (interact.Request, error) {
	d, err := f.descriptor()
	if err != nil {
		return interact.Request{}, err
	}
	req := interact.Request{Descriptor: d}
	if f.coords != "" {
		vals, err := parseFloats(f.coords, 2)
		if err != nil {
			return interact.Request{}, fmt.Errorf("--coords wants x,y: %w", err)
		}
		req.Coords = &interact.Point{X: vals[0], Y: vals[1]}
	}
	return req, nil
}

// mustRequest parses the targeting flags, requiring at least one of them.
func mustRequest(f *targetFlags) interact.Request {
	req, err := f.request()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if req.Descriptor.Empty() && req.Coords == nil {
		fmt.Fprintln(os.Stderr, "Error: describe the element (--tag, --text, --attr, --box) or pass --coords")
		os.Exit(1)
	}
	return req
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated numbers, got %d", n, len(parts))
	}
	vals := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", p)
		}
		vals[i] = v
	}
	return vals, nil
}

// requestSummary renders the request for the journal's descriptor column.
func requestSummary(req interact.Request) string {
	if !req.Descriptor.Empty() {
		return req.Descriptor.Summary()
	}
	if req.Coords != nil {
		return fmt.Sprintf("coords=(%.0f,%.0f)", req.Coords.X, req.Coords.Y)
	}
	return ""
}

// runInteraction executes one interaction end to end: config, tab, engine,
// journal, output. The five interaction commands differ only in fn.
func runInteraction(op string, req interact.Request, fn func(context.Context, *interact.Engine, interact.Request) (*interact.ActionResult, error)) {
	r := resolveConfig()
	ctx := context.Background()
	hctx, _ := openTab(ctx, r)
	defer browser.GetManager().CloseAll()

	store := openJournal(r)
	defer store.Close()

	eng := interact.NewEngine(hctx, engineConfig(r))
	res, opErr := fn(ctx, eng, req)
	recordOutcome(ctx, store, op, requestSummary(req), res, opErr)
	if opErr != nil {
		fail(opErr)
	}
	printResult(res)
}

func engineConfig(r config.Resolved) interact.Config {
	return interact.Config{
		SettleMinMS: int(r.SettleMin / time.Millisecond),
		SettleMaxMS: int(r.SettleMax / time.Millisecond),
		KeyDelayMS:  int(r.KeyDelay / time.Millisecond),
	}
}

// printResult reports a completed interaction.
func printResult(res *interact.ActionResult) {
	fmt.Printf("%s ok (%s tier, %dms)\n", res.Op, res.Tier, res.Duration.Milliseconds())
	if res.Target != "" {
		fmt.Printf("  target: %s\n", res.Target)
	}
	if res.Tier == interact.TierFresh && res.Score > 0 {
		fmt.Printf("  score: %d\n", res.Score)
	}
	if res.TypedText != "" {
		fmt.Printf("  typed: %q\n", res.TypedText)
	}
	if res.SelectedLabel != "" || res.SelectedValue != "" {
		fmt.Printf("  selected: %q (value %q)\n", res.SelectedLabel, res.SelectedValue)
	}
	if res.Checked != nil {
		fmt.Printf("  checked: %v\n", *res.Checked)
	}
}
