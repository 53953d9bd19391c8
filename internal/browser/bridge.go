package browser

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pagepilot/pagepilot/internal/httputil"
	"github.com/pagepilot/pagepilot/internal/keyring"
	"github.com/pagepilot/pagepilot/internal/logging"
)

// Bridge relays protocol traffic between one browser-extension connection
// and any number of local CDP clients. It exists for setups where the page
// lives in a browser without an open debugging port: the extension dials
// /extension, clients (a Session, usually) dial /cdp, and the bridge
// correlates commands, responses, and events between them.
type Bridge struct {
	mu      sync.RWMutex
	writeMu sync.Mutex // serializes writes to extensionWS

	host        string
	port        int
	authToken   string
	requireAuth bool

	server      *http.Server
	upgrader    websocket.Upgrader
	extensionWS *websocket.Conn
	clients     map[string]*cdpClient

	// tabs the extension has attached, keyed by session id
	tabs map[string]*BridgeTab

	pending map[int]*pendingRequest
	nextReq int

	audit   *auditLogger
	log     logging.Logger
	stopped bool
}

// cdpClient is one local CDP connection. Each client owns its write mutex;
// responses and broadcast events go straight to the socket.
type cdpClient struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *cdpClient) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// BridgeTab is a tab attached through the extension.
type BridgeTab struct {
	SessionID string         `json:"sessionId"`
	TargetID  string         `json:"targetId"`
	Info      *BridgeTabInfo `json:"targetInfo"`
}

// BridgeTabInfo mirrors the protocol's TargetInfo shape.
type BridgeTabInfo struct {
	TargetID         string `json:"targetId"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	URL              string `json:"url"`
	Attached         bool   `json:"attached"`
	BrowserContextID string `json:"browserContextId"`
}

type pendingRequest struct {
	resolve chan any
	reject  chan error
	timer   *time.Timer
}

// Wire shapes on the client side: plain CDP JSON.
type cdpCommand struct {
	ID        int    `json:"id"`
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type cdpResponse struct {
	ID        int       `json:"id"`
	Result    any       `json:"result,omitempty"`
	Error     *cdpError `json:"error,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
}

type cdpError struct {
	Message string `json:"message"`
}

type cdpEvent struct {
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// Wire shapes on the extension side: commands and events are wrapped so the
// extension can multiplex forwarding alongside its own control messages.
type extCommand struct {
	ID     int         `json:"id"`
	Method string      `json:"method"`
	Params *extPayload `json:"params,omitempty"`
}

type extResponse struct {
	ID     int    `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type extEvent struct {
	Method string      `json:"method"`
	Params *extPayload `json:"params,omitempty"`
}

type extPayload struct {
	Method    string `json:"method"`
	Params    any    `json:"params,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

var (
	bridgesMu     sync.Mutex
	bridgesByPort = make(map[int]*Bridge)
)

// EnsureBridge returns the running bridge for the port, starting one if
// needed.
func EnsureBridge(port int, requireAuth bool) (*Bridge, error) {
	bridgesMu.Lock()
	defer bridgesMu.Unlock()

	if b, ok := bridgesByPort[port]; ok && !b.stopped {
		return b, nil
	}

	b, err := newBridge("127.0.0.1", port, requireAuth)
	if err != nil {
		return nil, err
	}
	bridgesByPort[port] = b
	return b, nil
}

// StopBridge stops the bridge on the port, if any.
func StopBridge(port int) error {
	bridgesMu.Lock()
	b := bridgesByPort[port]
	delete(bridgesByPort, port)
	bridgesMu.Unlock()

	if b != nil {
		return b.Stop()
	}
	return nil
}

// BridgeAuthHeaders returns the auth headers a local client should send when
// dialing the bridge at rawURL, or nil when none are needed.
func BridgeAuthHeaders(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil || !isLoopbackHost(u.Hostname()) {
		return nil
	}
	port := 0
	fmt.Sscanf(u.Port(), "%d", &port)

	bridgesMu.Lock()
	b := bridgesByPort[port]
	bridgesMu.Unlock()

	if b == nil || b.authToken == "" {
		return nil
	}
	return map[string]string{BridgeAuthHeader: b.authToken}
}

func newBridge(host string, port int, requireAuth bool) (*Bridge, error) {
	b := &Bridge{
		host:        host,
		port:        port,
		authToken:   loadOrCreateToken(),
		requireAuth: requireAuth,
		clients:     make(map[string]*cdpClient),
		tabs:        make(map[string]*BridgeTab),
		pending:     make(map[int]*pendingRequest),
		nextReq:     1,
		audit:       newAuditLogger(),
		log:         logging.For("bridge"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Extensions and direct (origin-less) connections only.
				return origin == "" || strings.HasPrefix(origin, "chrome-extension://")
			},
		},
	}

	b.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: b.Handler(),
	}

	listener, err := net.Listen("tcp", b.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("bridge listen on %s: %w", b.server.Addr, err)
	}

	go func() {
		if err := b.server.Serve(listener); err != http.ErrServerClosed {
			b.log.Errorf("bridge server: %v", err)
		}
	}()

	b.log.Infof("bridge listening on %s", b.server.Addr)
	return b, nil
}

// loadOrCreateToken reuses the keychain-persisted token so restarts keep
// extension pairings valid; without a keychain each run gets a fresh one.
func loadOrCreateToken() string {
	if keyring.Available() {
		if token, err := keyring.GetBridgeToken(); err == nil && token != "" {
			return token
		}
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return ""
	}
	token := base64.URLEncoding.EncodeToString(raw)
	if keyring.Available() {
		if err := keyring.SetBridgeToken(token); err != nil {
			logging.Warnf("bridge token not persisted: %v", err)
		}
	}
	return token
}

// Stop shuts the bridge down: extension socket, clients, pending requests,
// then the HTTP server.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	b.stopped = true
	if b.extensionWS != nil {
		b.extensionWS.Close()
		b.extensionWS = nil
	}
	for id, c := range b.clients {
		c.ws.Close()
		delete(b.clients, id)
	}
	for id, p := range b.pending {
		p.timer.Stop()
		p.reject <- fmt.Errorf("bridge stopped")
		delete(b.pending, id)
	}
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.server.Shutdown(ctx)
}

// ExtensionConnected reports whether an extension is attached.
func (b *Bridge) ExtensionConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.extensionWS != nil
}

// WebSocketURL is where CDP clients connect.
func (b *Bridge) WebSocketURL() string {
	return fmt.Sprintf("ws://127.0.0.1:%d/cdp", b.port)
}

// AuthToken returns the token non-loopback callers must present.
func (b *Bridge) AuthToken() string {
	return b.authToken
}

// Handler returns the bridge's HTTP surface, mountable on a larger server.
func (b *Bridge) Handler() http.Handler {
	router := chi.NewRouter()
	router.Get("/", b.handleRoot)
	router.Head("/", b.handleRoot)
	router.Get("/status", b.handleStatus)
	router.Get("/json/version", b.handleJSONVersion)
	router.Get("/json", b.handleJSONList)
	router.Get("/json/list", b.handleJSONList)
	router.Get("/json/activate/{targetId}", b.handleJSONActivate)
	router.HandleFunc("/extension", b.handleExtensionWS)
	router.HandleFunc("/cdp", b.handleCDPWS)
	return router
}

func (b *Bridge) handleRoot(w http.ResponseWriter, req *http.Request) {
	w.Write([]byte("OK"))
}

func (b *Bridge) handleStatus(w http.ResponseWriter, req *http.Request) {
	b.mu.RLock()
	tabs := len(b.tabs)
	clients := len(b.clients)
	b.mu.RUnlock()

	httputil.OkJSON(w, map[string]any{
		"extension_connected": b.ExtensionConnected(),
		"tabs":                tabs,
		"cdp_clients":         clients,
		"port":                b.port,
	})
}

func (b *Bridge) handleJSONVersion(w http.ResponseWriter, req *http.Request) {
	if !b.checkAuth(w, req) {
		return
	}

	payload := map[string]any{
		"Browser":          "Chrome/PagePilot-Bridge",
		"Protocol-Version": "1.3",
	}
	if b.ExtensionConnected() {
		payload["webSocketDebuggerUrl"] = b.WebSocketURL()
	}

	httputil.OkJSON(w, payload)
}

func (b *Bridge) handleJSONList(w http.ResponseWriter, req *http.Request) {
	if !b.checkAuth(w, req) {
		return
	}

	b.mu.RLock()
	list := make([]map[string]string, 0, len(b.tabs))
	for _, t := range b.tabs {
		list = append(list, map[string]string{
			"id":                   t.TargetID,
			"type":                 t.Info.Type,
			"title":                t.Info.Title,
			"url":                  t.Info.URL,
			"webSocketDebuggerUrl": b.WebSocketURL(),
		})
	}
	b.mu.RUnlock()

	httputil.OkJSON(w, list)
}

func (b *Bridge) handleJSONActivate(w http.ResponseWriter, req *http.Request) {
	if !b.checkAuth(w, req) {
		return
	}

	targetID := chi.URLParam(req, "targetId")
	if targetID == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "missing target id")
		return
	}

	_, err := b.forwardToExtension(&cdpCommand{
		Method: "Target.activateTarget",
		Params: map[string]any{"targetId": targetID},
	})
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Write([]byte("Target activated"))
}

// checkAuth gates the /json surface. Loopback callers pass without a token
// unless requireAuth is set; everyone else needs the token, via header or
// query param.
func (b *Bridge) checkAuth(w http.ResponseWriter, req *http.Request) bool {
	token := req.Header.Get(BridgeAuthHeader)
	if token == "" {
		token = req.URL.Query().Get(BridgeTokenQueryParam)
	}

	remoteIP := req.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}

	if isLoopbackIP(remoteIP) && !b.requireAuth {
		if token == "" || token == b.authToken {
			return true
		}
		httputil.Unauthorized(w, "")
		return false
	}

	if token != b.authToken {
		httputil.Unauthorized(w, "")
		return false
	}
	return true
}

// handleExtensionWS accepts the single extension connection. Loopback only.
func (b *Bridge) handleExtensionWS(w http.ResponseWriter, req *http.Request) {
	remoteIP := req.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}
	if !isLoopbackIP(remoteIP) {
		httputil.ErrorWithCode(w, http.StatusForbidden, "loopback only")
		return
	}

	b.mu.Lock()
	if b.extensionWS != nil {
		b.mu.Unlock()
		httputil.ErrorWithCode(w, http.StatusConflict, "extension already connected")
		return
	}
	b.mu.Unlock()

	ws, err := b.upgrader.Upgrade(w, req, nil)
	if err != nil {
		b.log.Warnf("extension upgrade failed: %v", err)
		return
	}

	b.log.Infof("extension connected from %s", req.RemoteAddr)
	b.mu.Lock()
	b.extensionWS = ws
	b.mu.Unlock()

	pingTicker := time.NewTicker(extensionPingInterval)
	defer pingTicker.Stop()
	go func() {
		for range pingTicker.C {
			b.mu.RLock()
			ext := b.extensionWS
			b.mu.RUnlock()
			if ext == nil {
				return
			}
			b.writeMu.Lock()
			ext.WriteJSON(map[string]string{"method": "ping"})
			b.writeMu.Unlock()
		}
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			b.log.Infof("extension disconnected: %v", err)
			break
		}
		b.handleExtensionMessage(message)
	}

	b.mu.Lock()
	b.extensionWS = nil
	b.tabs = make(map[string]*BridgeTab)
	for id, p := range b.pending {
		p.timer.Stop()
		p.reject <- fmt.Errorf("extension disconnected")
		delete(b.pending, id)
	}
	for id, c := range b.clients {
		c.ws.Close()
		delete(b.clients, id)
	}
	b.mu.Unlock()
}

// handleCDPWS accepts a local CDP client connection.
func (b *Bridge) handleCDPWS(w http.ResponseWriter, req *http.Request) {
	remoteIP := req.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}
	if !isLoopbackIP(remoteIP) {
		httputil.ErrorWithCode(w, http.StatusForbidden, "loopback only")
		return
	}

	token := req.Header.Get(BridgeAuthHeader)
	if token == "" {
		token = req.URL.Query().Get(BridgeTokenQueryParam)
	}
	if b.requireAuth && token != b.authToken {
		httputil.Unauthorized(w, "")
		return
	}
	if token != "" && token != b.authToken {
		httputil.Unauthorized(w, "")
		return
	}

	if !b.ExtensionConnected() {
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable,
			"extension not connected; attach a tab from the browser extension first")
		return
	}

	ws, err := b.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	client := &cdpClient{id: uuid.NewString(), ws: ws}
	b.log.Infof("cdp client connected: %s", truncateID(client.id))

	b.mu.Lock()
	b.clients[client.id] = client
	b.mu.Unlock()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}
		var cmd cdpCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			b.log.Warnf("cdp client %s sent bad JSON: %v", truncateID(client.id), err)
			continue
		}
		b.handleCommand(client, &cmd)
	}

	b.log.Infof("cdp client disconnected: %s", truncateID(client.id))
	b.mu.Lock()
	delete(b.clients, client.id)
	b.mu.Unlock()
}

// handleExtensionMessage dispatches one frame from the extension: a command
// response, a pong, or a forwarded page event.
func (b *Bridge) handleExtensionMessage(data []byte) {
	var resp extResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.ID > 0 {
		b.mu.Lock()
		p := b.pending[resp.ID]
		delete(b.pending, resp.ID)
		b.mu.Unlock()

		if p != nil {
			p.timer.Stop()
			if resp.Error != "" {
				p.reject <- fmt.Errorf("%s", resp.Error)
			} else {
				p.resolve <- resp.Result
			}
		}
		return
	}

	var evt extEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return
	}
	if evt.Method == "pong" {
		return
	}
	if evt.Method != "forwardCDPEvent" || evt.Params == nil {
		return
	}

	method := evt.Params.Method
	params := evt.Params.Params

	switch method {
	case "Target.attachedToTarget":
		b.handleTabAttached(params)
		return
	case "Target.detachedFromTarget":
		b.handleTabDetached(params)
		return
	case "Target.targetInfoChanged":
		b.handleTabInfoChanged(params)
		// falls through to broadcast
	}

	b.broadcast(&cdpEvent{Method: method, Params: params, SessionID: evt.Params.SessionID})
}

func (b *Bridge) handleTabAttached(params any) {
	m, ok := params.(map[string]any)
	if !ok {
		return
	}
	sessionID, _ := m["sessionId"].(string)
	infoRaw, _ := m["targetInfo"].(map[string]any)
	if sessionID == "" || infoRaw == nil {
		return
	}

	tabType, _ := infoRaw["type"].(string)
	if tabType != "" && tabType != "page" {
		return
	}
	if tabType == "" {
		tabType = "page"
	}

	targetID, _ := infoRaw["targetId"].(string)
	title, _ := infoRaw["title"].(string)
	tabURL, _ := infoRaw["url"].(string)
	contextID, _ := infoRaw["browserContextId"].(string)
	if contextID == "" {
		contextID = "default"
	}

	tab := &BridgeTab{
		SessionID: sessionID,
		TargetID:  targetID,
		Info: &BridgeTabInfo{
			TargetID:         targetID,
			Type:             tabType,
			Title:            title,
			URL:              tabURL,
			Attached:         true,
			BrowserContextID: contextID,
		},
	}

	b.log.Infof("tab attached: %s %s", truncateID(targetID), tabURL)
	b.mu.Lock()
	b.tabs[sessionID] = tab
	b.mu.Unlock()

	// Browser-level event, so no top-level sessionId.
	b.broadcast(&cdpEvent{
		Method: "Target.attachedToTarget",
		Params: map[string]any{
			"sessionId":          sessionID,
			"targetInfo":         tab.Info,
			"waitingForDebugger": false,
		},
	})
}

func (b *Bridge) handleTabDetached(params any) {
	m, ok := params.(map[string]any)
	if !ok {
		return
	}
	sessionID, _ := m["sessionId"].(string)
	if sessionID == "" {
		return
	}

	b.mu.Lock()
	delete(b.tabs, sessionID)
	b.mu.Unlock()

	b.broadcast(&cdpEvent{Method: "Target.detachedFromTarget", Params: params})
}

func (b *Bridge) handleTabInfoChanged(params any) {
	m, ok := params.(map[string]any)
	if !ok {
		return
	}
	infoRaw, _ := m["targetInfo"].(map[string]any)
	if infoRaw == nil {
		return
	}
	targetID, _ := infoRaw["targetId"].(string)
	if targetID == "" {
		return
	}

	b.mu.Lock()
	for _, tab := range b.tabs {
		if tab.TargetID == targetID {
			if title, ok := infoRaw["title"].(string); ok {
				tab.Info.Title = title
			}
			if u, ok := infoRaw["url"].(string); ok {
				tab.Info.URL = u
			}
		}
	}
	b.mu.Unlock()
}

// handleCommand answers browser-level commands locally and forwards the rest
// to the extension. The response always goes out before any queued events:
// clients expect command acknowledgement first.
func (b *Bridge) handleCommand(client *cdpClient, cmd *cdpCommand) {
	b.audit.relayed(client.id, cmd.Method, cmd.SessionID)

	var result any
	var err error
	var postEvents []any

	switch cmd.Method {
	case "Browser.getVersion":
		result = map[string]string{
			"protocolVersion": "1.3",
			"product":         "Chrome/PagePilot-Bridge",
			"revision":        "0",
			"userAgent":       "PagePilot-Bridge",
			"jsVersion":       "V8",
		}
	case "Target.setAutoAttach":
		result = map[string]any{}
		if cmd.SessionID == "" {
			postEvents = b.existingTabEvents()
		}
	case "Target.setDiscoverTargets":
		result = map[string]any{}
		if params, ok := cmd.Params.(map[string]any); ok {
			if discover, _ := params["discover"].(bool); discover {
				postEvents = b.existingTabEvents()
			}
		}
	case "Target.getTargets":
		result = b.targetsResult()
	case "Target.getTargetInfo":
		result = b.targetInfoResult(cmd)
	case "Target.attachToTarget":
		result, err = b.attachResult(cmd)
		if err == nil {
			if params, ok := cmd.Params.(map[string]any); ok {
				if targetID, _ := params["targetId"].(string); targetID != "" {
					if evt := b.attachedEventFor(targetID); evt != nil {
						postEvents = append(postEvents, evt)
					}
				}
			}
		}
	default:
		result, err = b.forwardToExtension(cmd)
	}

	resp := &cdpResponse{ID: cmd.ID, SessionID: cmd.SessionID}
	if err != nil {
		resp.Error = &cdpError{Message: err.Error()}
	} else {
		resp.Result = result
	}

	if err := client.send(resp); err != nil {
		return
	}
	for _, evt := range postEvents {
		client.send(evt)
	}
}

func (b *Bridge) targetsResult() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]map[string]any, 0, len(b.tabs))
	for _, t := range b.tabs {
		info := map[string]any{
			"targetId": t.TargetID,
			"type":     t.Info.Type,
			"title":    t.Info.Title,
			"url":      t.Info.URL,
			"attached": true,
		}
		if t.Info.BrowserContextID != "" {
			info["browserContextId"] = t.Info.BrowserContextID
		}
		infos = append(infos, info)
	}
	return map[string]any{"targetInfos": infos}
}

func (b *Bridge) targetInfoResult(cmd *cdpCommand) map[string]any {
	var wantID string
	if params, ok := cmd.Params.(map[string]any); ok {
		wantID, _ = params["targetId"].(string)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tabs {
		if wantID == "" || t.TargetID == wantID {
			return map[string]any{"targetInfo": t.Info}
		}
	}
	return map[string]any{}
}

func (b *Bridge) attachResult(cmd *cdpCommand) (map[string]any, error) {
	params, ok := cmd.Params.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing params")
	}
	targetID, _ := params["targetId"].(string)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tabs {
		if t.TargetID == targetID {
			return map[string]any{"sessionId": t.SessionID}, nil
		}
	}
	return nil, fmt.Errorf("no such target: %s", truncateID(targetID))
}

func (b *Bridge) attachedEventFor(targetID string) *cdpEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tabs {
		if t.TargetID == targetID {
			return &cdpEvent{
				Method: "Target.attachedToTarget",
				Params: map[string]any{
					"sessionId":          t.SessionID,
					"targetInfo":         t.Info,
					"waitingForDebugger": false,
				},
			}
		}
	}
	return nil
}

func (b *Bridge) existingTabEvents() []any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := make([]any, 0, len(b.tabs))
	for _, t := range b.tabs {
		events = append(events, &cdpEvent{
			Method: "Target.attachedToTarget",
			Params: map[string]any{
				"sessionId":          t.SessionID,
				"targetInfo":         t.Info,
				"waitingForDebugger": false,
			},
		})
	}
	return events
}

func (b *Bridge) forwardToExtension(cmd *cdpCommand) (any, error) {
	return b.sendToExtension(&extCommand{
		ID:     b.nextID(),
		Method: "forwardCDPCommand",
		Params: &extPayload{
			Method:    cmd.Method,
			Params:    cmd.Params,
			SessionID: cmd.SessionID,
		},
	})
}

func (b *Bridge) sendToExtension(cmd *extCommand) (any, error) {
	b.mu.RLock()
	ext := b.extensionWS
	b.mu.RUnlock()
	if ext == nil {
		return nil, fmt.Errorf("extension not connected")
	}

	p := &pendingRequest{
		resolve: make(chan any, 1),
		reject:  make(chan error, 1),
	}
	p.timer = time.AfterFunc(extensionCommandTimeout, func() {
		// Only the path that removes the entry may push, so a racing Stop or
		// disconnect cleanup cannot double-send on the buffered channel.
		b.mu.Lock()
		_, present := b.pending[cmd.ID]
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		if present {
			p.reject <- fmt.Errorf("timed out waiting for extension")
		}
	})

	b.mu.Lock()
	b.pending[cmd.ID] = p
	b.mu.Unlock()

	b.writeMu.Lock()
	err := ext.WriteJSON(cmd)
	b.writeMu.Unlock()
	if err != nil {
		p.timer.Stop()
		b.mu.Lock()
		delete(b.pending, cmd.ID)
		b.mu.Unlock()
		return nil, err
	}

	select {
	case result := <-p.resolve:
		return result, nil
	case err := <-p.reject:
		return nil, err
	}
}

// broadcast sends an event to every connected CDP client.
func (b *Bridge) broadcast(evt *cdpEvent) {
	b.mu.RLock()
	clients := make([]*cdpClient, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if err := c.send(evt); err != nil {
			b.log.Warnf("event to cdp client %s failed: %v", truncateID(c.id), err)
		}
	}
}

func (b *Bridge) nextID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextReq
	b.nextReq++
	return id
}

func isLoopbackHost(host string) bool {
	return host == "localhost" || isLoopbackIP(host)
}

func isLoopbackIP(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}
