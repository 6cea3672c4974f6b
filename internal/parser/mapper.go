package parser

import (
	"encoding/json"
	"time"

	"github.com/stackwatch-systems/stackwatch/internal/models"
)

// wireError is the nested error shape shared by the JSON wire formats.
type wireError struct {
	Message    string      `json:"message"`
	Type       string      `json:"type"`
	StackTrace []wireFrame `json:"stack_trace"`
	Inner      *wireError  `json:"inner"`
}

type wireFrame struct {
	FileName      string `json:"file_name"`
	LineNumber    int    `json:"line_number"`
	Column        int    `json:"column"`
	DeclaringType string `json:"declaring_type"`
	Name          string `json:"name"`
}

type wireRequest struct {
	UserAgent       string            `json:"user_agent"`
	HTTPMethod      string            `json:"http_method"`
	IsSecure        bool              `json:"is_secure"`
	Host            string            `json:"host"`
	Port            int               `json:"port"`
	Path            string            `json:"path"`
	Referrer        string            `json:"referrer"`
	ClientIPAddress string            `json:"client_ip_address"`
	QueryString     map[string]string `json:"query_string"`
}

type wireEnvironment struct {
	ProcessorCount  int    `json:"processor_count"`
	TotalMemory     int64  `json:"total_memory"`
	AvailableMemory int64  `json:"available_memory"`
	ProcessName     string `json:"process_name"`
	ProcessID       string `json:"process_id"`
	CommandLine     string `json:"command_line"`
	MachineName     string `json:"machine_name"`
	Architecture    string `json:"architecture"`
	OSName          string `json:"os_name"`
	OSVersion       string `json:"os_version"`
	RuntimeVersion  string `json:"runtime_version"`
}

type wireUser struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// Mapper holds the per-format mapping behavior shared by every plugin.
// MemoryInMegabytes marks formats whose agents report memory sizes in
// megabytes; canonical events always carry bytes.
type Mapper struct {
	MemoryInMegabytes bool
}

// MapType sets the event type, defaulting unknown values to error to keep
// legacy agents that omit the field working.
func (m Mapper) MapType(t string) string {
	switch t {
	case models.TypeError, models.TypeLog, models.TypeFeatureUsage,
		models.TypeNotFound, models.TypeSession, models.TypeSessionEnd,
		models.TypeHeartbeat:
		return t
	case "":
		return models.TypeError
	default:
		return models.TypeLog
	}
}

// MapDate parses the envelope date, falling back to receipt time. Both
// RFC 3339 strings and Unix seconds are accepted.
func (m Mapper) MapDate(raw json.RawMessage, received time.Time) time.Time {
	if len(raw) == 0 {
		return received
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC()
		}
		return received
	}
	var unix float64
	if err := json.Unmarshal(raw, &unix); err == nil && unix > 0 {
		sec := int64(unix)
		nsec := int64((unix - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC()
	}
	return received
}

// MapError converts a nested wire error chain, preserving nesting order
// and discarding placeholder traces.
func (m Mapper) MapError(we *wireError) *models.InnerError {
	if we == nil {
		return nil
	}
	e := &models.InnerError{
		Message: we.Message,
		Type:    we.Type,
		Inner:   m.MapError(we.Inner),
	}
	if !isPlaceholderTrace(we.StackTrace) {
		for _, f := range we.StackTrace {
			e.StackTrace = append(e.StackTrace, models.StackFrame{
				FileName:      f.FileName,
				LineNumber:    f.LineNumber,
				Column:        f.Column,
				DeclaringType: f.DeclaringType,
				Name:          f.Name,
			})
		}
	}
	return e
}

// isPlaceholderTrace detects the "no stack trace available" marker some
// agents emit: a single frame with no method and no file, or the literal
// <null> method name. No fake frame is synthesized for these.
func isPlaceholderTrace(frames []wireFrame) bool {
	if len(frames) != 1 {
		return false
	}
	f := frames[0]
	if f.Name == "<null>" {
		return true
	}
	return f.Name == "" && f.FileName == "" && f.DeclaringType == ""
}

// MapRequest converts the request sub-object.
func (m Mapper) MapRequest(wr *wireRequest) *models.RequestInfo {
	if wr == nil {
		return nil
	}
	return &models.RequestInfo{
		UserAgent:       wr.UserAgent,
		HTTPMethod:      wr.HTTPMethod,
		IsSecure:        wr.IsSecure,
		Host:            wr.Host,
		Port:            wr.Port,
		Path:            wr.Path,
		Referrer:        wr.Referrer,
		ClientIPAddress: wr.ClientIPAddress,
		QueryString:     wr.QueryString,
	}
}

// MapEnvironment converts the environment sub-object, normalizing memory
// sizes to bytes.
func (m Mapper) MapEnvironment(we *wireEnvironment) *models.EnvironmentInfo {
	if we == nil {
		return nil
	}
	return &models.EnvironmentInfo{
		ProcessorCount:  we.ProcessorCount,
		TotalMemory:     m.normalizeMemory(we.TotalMemory),
		AvailableMemory: m.normalizeMemory(we.AvailableMemory),
		ProcessName:     we.ProcessName,
		ProcessID:       we.ProcessID,
		CommandLine:     we.CommandLine,
		MachineName:     we.MachineName,
		Architecture:    we.Architecture,
		OSName:          we.OSName,
		OSVersion:       we.OSVersion,
		RuntimeVersion:  we.RuntimeVersion,
	}
}

func (m Mapper) normalizeMemory(v int64) int64 {
	if m.MemoryInMegabytes {
		return v * 1024 * 1024
	}
	return v
}

// MapUser converts the user sub-object.
func (m Mapper) MapUser(wu *wireUser) *models.UserInfo {
	if wu == nil {
		return nil
	}
	return &models.UserInfo{Identity: wu.Identity, Name: wu.Name}
}

// FoldCustomFields copies top-level fields not mapped to a canonical slot
// into the event's data bag under their original keys.
func (m Mapper) FoldCustomFields(event *models.Event, raw map[string]json.RawMessage, known map[string]bool) {
	for key, value := range raw {
		if known[key] {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			continue
		}
		if event.Data == nil {
			event.Data = make(map[string]interface{})
		}
		if _, exists := event.Data[key]; !exists {
			event.Data[key] = decoded
		}
	}
}
