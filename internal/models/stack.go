package models

import "time"

// SignatureItem is one ordered key/value pair contributing to a stack
// signature hash.
type SignatureItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Stack is the deduplication unit: one per distinct recurring problem
// within a project. At most one stack exists per (project id, signature
// hash) pair.
type Stack struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	ProjectID      string          `json:"project_id"`
	Type           string          `json:"type"`
	Title          string          `json:"title,omitempty"`
	SignatureHash  string          `json:"signature_hash"`
	SignatureInfo  []SignatureItem `json:"signature_info,omitempty"`

	Tags TagSet `json:"tags,omitempty"`

	FirstOccurrence  time.Time `json:"first_occurrence"`
	LastOccurrence   time.Time `json:"last_occurrence"`
	TotalOccurrences int64     `json:"total_occurrences"`

	DateFixed            *time.Time `json:"date_fixed,omitempty"`
	IsRegressed          bool       `json:"is_regressed"`
	IsHidden             bool       `json:"is_hidden"`
	DisableNotifications bool       `json:"disable_notifications"`
}

// IsFixed reports whether the stack is currently marked fixed.
func (s *Stack) IsFixed() bool {
	return s.DateFixed != nil
}
