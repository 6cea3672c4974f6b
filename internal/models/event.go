package models

import "time"

// Event types accepted by the collector.
const (
	TypeError        = "error"
	TypeLog          = "log"
	TypeFeatureUsage = "featureusage"
	TypeNotFound     = "notfound"
	TypeSession      = "session"
	TypeSessionEnd   = "sessionend"
	TypeHeartbeat    = "heartbeat"
)

// Event is a single reported occurrence submitted by a client application.
// Stack identity is assigned by the pipeline, never by the client.
type Event struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ProjectID      string    `json:"project_id"`
	StackID        string    `json:"stack_id,omitempty"`
	Type           string    `json:"type"`
	Source         string    `json:"source,omitempty"`
	Date           time.Time `json:"date"`
	Message        string    `json:"message,omitempty"`

	Tags TagSet                 `json:"tags,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`

	// Idx holds derived index fields computed from Data by the pipeline.
	// Keys carry a type suffix (-s, -n, -d, -b) so the search index can
	// map them without dynamic type guessing.
	Idx map[string]interface{} `json:"idx,omitempty"`

	Error       *InnerError      `json:"error,omitempty"`
	Request     *RequestInfo     `json:"request,omitempty"`
	Environment *EnvironmentInfo `json:"environment,omitempty"`
	User        *UserInfo        `json:"user,omitempty"`

	IsFirstOccurrence bool `json:"is_first_occurrence"`
}

// InnerError describes an error occurrence, possibly nested.
type InnerError struct {
	Message    string       `json:"message,omitempty"`
	Type       string       `json:"type,omitempty"`
	StackTrace []StackFrame `json:"stack_trace,omitempty"`
	Inner      *InnerError  `json:"inner,omitempty"`
}

// TargetFrame returns the top stack frame of the innermost error, which is
// the frame closest to the fault.
func (e *InnerError) TargetFrame() *StackFrame {
	if e == nil {
		return nil
	}
	if e.Inner != nil {
		if f := e.Inner.TargetFrame(); f != nil {
			return f
		}
	}
	if len(e.StackTrace) > 0 {
		return &e.StackTrace[0]
	}
	return nil
}

// TargetType returns the type of the innermost error.
func (e *InnerError) TargetType() string {
	if e == nil {
		return ""
	}
	if e.Inner != nil {
		if t := e.Inner.TargetType(); t != "" {
			return t
		}
	}
	return e.Type
}

// StackFrame is a single frame of an error stack trace.
type StackFrame struct {
	FileName      string `json:"file_name,omitempty"`
	LineNumber    int    `json:"line_number,omitempty"`
	Column        int    `json:"column,omitempty"`
	DeclaringType string `json:"declaring_type,omitempty"`
	Name          string `json:"name,omitempty"`
}

// RequestInfo captures the HTTP request a client event occurred in.
type RequestInfo struct {
	UserAgent       string            `json:"user_agent,omitempty"`
	HTTPMethod      string            `json:"http_method,omitempty"`
	IsSecure        bool              `json:"is_secure,omitempty"`
	Host            string            `json:"host,omitempty"`
	Port            int               `json:"port,omitempty"`
	Path            string            `json:"path,omitempty"`
	Referrer        string            `json:"referrer,omitempty"`
	ClientIPAddress string            `json:"client_ip_address,omitempty"`
	QueryString     map[string]string `json:"query_string,omitempty"`
}

// EnvironmentInfo captures the machine the client event occurred on.
// Memory sizes are always bytes; format plugins normalize unit conventions.
type EnvironmentInfo struct {
	ProcessorCount  int    `json:"processor_count,omitempty"`
	TotalMemory     int64  `json:"total_memory,omitempty"`
	AvailableMemory int64  `json:"available_memory,omitempty"`
	ProcessName     string `json:"process_name,omitempty"`
	ProcessID       string `json:"process_id,omitempty"`
	CommandLine     string `json:"command_line,omitempty"`
	MachineName     string `json:"machine_name,omitempty"`
	Architecture    string `json:"architecture,omitempty"`
	OSName          string `json:"os_name,omitempty"`
	OSVersion       string `json:"os_version,omitempty"`
	RuntimeVersion  string `json:"runtime_version,omitempty"`
}

// UserInfo identifies the end user a client event belongs to.
type UserInfo struct {
	Identity string `json:"identity,omitempty"`
	Name     string `json:"name,omitempty"`
}
