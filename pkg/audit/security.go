// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-askdata/pkg/logging"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags user input.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventGuardrailBlock is logged when a generated statement contains a forbidden keyword.
	EventGuardrailBlock SecurityEventType = "guardrail_block"
	// EventQueryExecution is logged for each executed statement (can be high volume).
	EventQueryExecution SecurityEventType = "query_execution"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	EventID   uuid.UUID         `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ThreadID  string            `json:"thread_id"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of input flagged by libinjection.
type InjectionDetails struct {
	Source      string `json:"source"`
	Text        string `json:"text"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// GuardrailDetails describes a statement rejected before execution.
type GuardrailDetails struct {
	Keyword   string `json:"keyword"`
	Statement string `json:"statement"`
}

// ExecutionDetails describes an executed statement.
type ExecutionDetails struct {
	Statement string `json:"statement"`
	RowCount  int    `json:"row_count"`
	Error     string `json:"error,omitempty"`
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address for audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address attached with WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// SecurityAuditor logs security events for SIEM consumption.
// Events are logged in structured JSON format with appropriate severity levels.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor under the "security_audit" logger namespace.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, threadID, severity string, details any) []zap.Field {
	event := SecurityEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ThreadID:  threadID,
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}

	// Marshaling known types cannot fail
	eventJSON, _ := json.Marshal(event)

	return []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_id", event.EventID.String()),
		zap.String("thread_id", threadID),
		zap.String("client_ip", event.ClientIP),
		zap.String("severity", severity),
	}
}

// LogInjectionAttempt records user input that libinjection recognised as SQL injection.
// Logged at ERROR level with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogInjectionAttempt(ctx context.Context, threadID string, details InjectionDetails) {
	details.Text = logging.TruncateString(details.Text, logging.MaxQueryLogLength)
	fields := a.newEvent(ctx, EventSQLInjectionAttempt, threadID, "critical", details)

	a.logger.Error("SQL injection pattern in user input",
		append(fields,
			zap.String("source", details.Source),
			zap.String("fingerprint", details.Fingerprint))...)
}

// LogGuardrailBlock records a generated statement rejected by the keyword guardrail.
func (a *SecurityAuditor) LogGuardrailBlock(ctx context.Context, threadID string, details GuardrailDetails) {
	details.Statement = logging.SanitizeQuery(details.Statement)
	fields := a.newEvent(ctx, EventGuardrailBlock, threadID, "warning", details)

	a.logger.Warn("Generated SQL blocked by guardrail",
		append(fields, zap.String("keyword", details.Keyword))...)
}

// LogQueryExecution records an executed statement for the audit trail.
// Failed executions are logged at WARN, successful ones at INFO.
func (a *SecurityAuditor) LogQueryExecution(ctx context.Context, threadID string, details ExecutionDetails) {
	details.Statement = logging.SanitizeQuery(details.Statement)
	severity := "info"
	if details.Error != "" {
		severity = "warning"
	}
	fields := a.newEvent(ctx, EventQueryExecution, threadID, severity, details)
	fields = append(fields, zap.Int("row_count", details.RowCount))

	if details.Error != "" {
		a.logger.Warn("Query execution failed", append(fields, zap.String("error", details.Error))...)
		return
	}
	a.logger.Info("Query executed", fields...)
}
