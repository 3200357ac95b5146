// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant query events in structured JSON format for easy
// parsing and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/homebrew-hq/homebrew-engine/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection matches a filter value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventQueryValidation is logged when a query request is rejected before reaching the store.
	EventQueryValidation SecurityEventType = "query_validation_failure"
	// EventQueryExecution is logged for successful query execution (high volume, debug level).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Table     string            `json:"table,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a filter value that matched an
// injection pattern.
type InjectionDetails struct {
	Field       string `json:"field"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address so events raised deeper in the
// stack can report it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is named "security_audit" for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, userID, table, severity string, details any) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Table:     table,
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
}

// LogInjectionAttempt records a filter value that matched a SQL injection
// pattern. Logged at ERROR level with "critical" severity for alerting, even
// though the value is only ever bound as a parameter.
//
//	auditor.LogInjectionAttempt(ctx, "u1", "todos", audit.InjectionDetails{
//	    Field:       "title",
//	    Value:       "'; DROP TABLE todos--",
//	    Fingerprint: "s;T(c",
//	})
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, userID, table string, details InjectionDetails) {
	details.Value = logging.TruncateString(details.Value, logging.MaxQueryLogLength)
	event := a.newEvent(ctx, EventSQLInjectionAttempt, userID, table, "critical", details)

	// Marshaling known types cannot fail
	eventJSON, _ := json.Marshal(event)

	a.logger.Error("SQL injection attempt detected",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.ID.String()),
		zap.String("user_id", userID),
		zap.String("table", table),
		zap.String("field", details.Field),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", "critical"),
	)
}

// LogQueryValidation records a rejected query request. Logged at WARN level;
// these are usually model mistakes rather than attacks.
func (a *SecurityAuditor) LogQueryValidation(ctx context.Context, userID, table, kind, message string) {
	event := a.newEvent(ctx, EventQueryValidation, userID, table, "warning", map[string]string{
		"kind":  kind,
		"error": message,
	})

	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Query validation failed",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.ID.String()),
		zap.String("user_id", userID),
		zap.String("table", table),
		zap.String("kind", kind),
		zap.String("error", message),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", "warning"),
	)
}

// LogQueryExecution records a successful query. It is logged at DEBUG level
// because every chat turn can produce several.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, userID, table string, rowCount int) {
	if !a.logger.Core().Enabled(zap.DebugLevel) {
		return
	}

	event := a.newEvent(ctx, EventQueryExecution, userID, table, "info", map[string]int{
		"row_count": rowCount,
	})

	eventJSON, _ := json.Marshal(event)

	a.logger.Debug("Query executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.ID.String()),
		zap.String("user_id", userID),
		zap.String("table", table),
		zap.Int("row_count", rowCount),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", "info"),
	)
}
