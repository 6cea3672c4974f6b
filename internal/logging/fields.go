package logging

import "log/slog"

// Common field names for consistent logging across the collector.
const (
	FieldService   = "service"
	FieldOrgID     = "organization_id"
	FieldProjectID = "project_id"
	FieldStackID   = "stack_id"
	FieldEventID   = "event_id"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// OrgID returns a slog attribute for an organization ID.
func OrgID(id string) slog.Attr {
	return slog.String(FieldOrgID, id)
}

// ProjectID returns a slog attribute for a project ID.
func ProjectID(id string) slog.Attr {
	return slog.String(FieldProjectID, id)
}

// StackID returns a slog attribute for a stack ID.
func StackID(id string) slog.Attr {
	return slog.String(FieldStackID, id)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// IP returns a slog attribute for the IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
