package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Target describes one debuggable page as reported by the endpoint's /json
// surface.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

var discoveryClient = &http.Client{Timeout: 5 * time.Second}

// ListTargets fetches the endpoint's open page targets. Non-page targets
// (workers, extensions) are filtered out.
func ListTargets(ctx context.Context, endpointURL string) ([]Target, error) {
	var all []Target
	if err := getJSON(ctx, endpointURL+"/json/list", &all); err != nil {
		return nil, Errf(KindProtocol, "targets", "endpoint %s unreachable", endpointURL).WithCause(err)
	}
	pages := make([]Target, 0, len(all))
	for _, t := range all {
		if t.Type == "page" {
			pages = append(pages, t)
		}
	}
	return pages, nil
}

// PickTarget selects the tab to drive: an explicit id wins, then the first
// target whose URL contains urlContains, else the first page target.
func PickTarget(targets []Target, id, urlContains string) (Target, error) {
	if len(targets) == 0 {
		return Target{}, Errf(KindProtocol, "targets", "no page targets open")
	}
	if id != "" {
		for _, t := range targets {
			if t.ID == id {
				return t, nil
			}
		}
		return Target{}, Errf(KindProtocol, "targets", "target %s not found", truncateID(id))
	}
	if urlContains != "" {
		for _, t := range targets {
			if strings.Contains(t.URL, urlContains) {
				return t, nil
			}
		}
		return Target{}, Errf(KindProtocol, "targets", "no target URL contains %q", urlContains)
	}
	return targets[0], nil
}

// Reachable probes the endpoint's /json/version.
func Reachable(ctx context.Context, endpointURL string) bool {
	var data struct {
		Browser string `json:"Browser"`
	}
	return getJSON(ctx, endpointURL+"/json/version", &data) == nil
}

// debuggerURL resolves the browser-level WebSocket URL from /json/version.
func debuggerURL(ctx context.Context, endpointURL string) (string, error) {
	var data struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := getJSON(ctx, endpointURL+"/json/version", &data); err != nil {
		return "", err
	}
	if data.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("endpoint reported no webSocketDebuggerUrl")
	}
	return data.WebSocketDebuggerURL, nil
}

func getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := discoveryClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
