package browser

import (
	"log/slog"
	"time"
)

// sensitiveCommands are protocol methods whose params may carry page content
// or keystrokes. They are logged by name only, never with params, at WARN so
// audit reviews can find them.
var sensitiveCommands = map[string]bool{
	"Runtime.evaluate":       true,
	"Runtime.callFunctionOn": true,
	"Input.dispatchKeyEvent": true,
	"Input.insertText":       true,
	"DOM.setAttributeValue":  true,
}

type auditLogger struct {
	logger *slog.Logger
}

func newAuditLogger() *auditLogger {
	return &auditLogger{
		logger: slog.Default().With("component", "cdp-session"),
	}
}

func (l *auditLogger) command(method, targetID string) {
	if l == nil {
		return
	}

	attrs := []any{
		"method", method,
		"target", truncateID(targetID),
		"ts", time.Now().Unix(),
	}

	if sensitiveCommands[method] {
		l.logger.Warn("cdp_sensitive_command", attrs...)
	} else {
		l.logger.Info("cdp_command", attrs...)
	}
}

// relayed records a command passing through the bridge on behalf of a
// CDP client.
func (l *auditLogger) relayed(clientID, method, sessionID string) {
	if l == nil {
		return
	}

	attrs := []any{
		"client", truncateID(clientID),
		"method", method,
		"session", truncateID(sessionID),
		"ts", time.Now().Unix(),
	}

	if sensitiveCommands[method] {
		l.logger.Warn("bridge_sensitive_command", attrs...)
	} else {
		l.logger.Info("bridge_command", attrs...)
	}
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
