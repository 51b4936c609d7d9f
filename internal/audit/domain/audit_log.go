package domain

import "time"

// AuditLog represents an audit event.
type AuditLog struct {
	ID string
	// Subject is the normalized email or consultant external id the event is about.
	Subject   string
	Action    string
	Resource  string
	IP        string
	Metadata  map[string]string
	CreatedAt time.Time
}
