package api

import "time"

// Kind identifies one of the tenant-scoped entity collections.
type Kind string

const (
	KindAgents             Kind = "agents"
	KindTools              Kind = "tools"
	KindAgentTools         Kind = "agent_tools"
	KindCredentials        Kind = "credentials"
	KindKnowledgeDocuments Kind = "knowledge_documents"
	KindProjectAgents      Kind = "project_agents"
	KindAgentExecutions    Kind = "agent_executions"
)

// kindPrefixes maps each kind to its record ID prefix.
var kindPrefixes = map[Kind]string{
	KindAgents:             "agt_",
	KindTools:              "tool_",
	KindAgentTools:         "atl_",
	KindCredentials:        "cred_",
	KindKnowledgeDocuments: "doc_",
	KindProjectAgents:      "pal_",
	KindAgentExecutions:    "exec_",
}

// kindOrder lists all kinds in a stable order for iteration (migrations,
// metrics, route registration).
var kindOrder = []Kind{
	KindAgents,
	KindTools,
	KindAgentTools,
	KindCredentials,
	KindKnowledgeDocuments,
	KindProjectAgents,
	KindAgentExecutions,
}

// Kinds returns all entity kinds in a stable order. The returned slice is a
// copy and safe to modify.
func Kinds() []Kind {
	out := make([]Kind, len(kindOrder))
	copy(out, kindOrder)
	return out
}

// Valid reports whether k names a known entity kind.
func (k Kind) Valid() bool {
	_, ok := kindPrefixes[k]
	return ok
}

// IDPrefix returns the record ID prefix for the kind, or empty string for
// an unknown kind.
func (k Kind) IDPrefix() string {
	return kindPrefixes[k]
}

// Table returns the relational table name backing the kind. Table names come
// from the fixed registry, never from caller input.
func (k Kind) Table() string {
	return string(k)
}

// Record is one row of an entity collection. Every record belongs to exactly
// one tenant; TenantID is immutable after creation. Domain fields live in
// Data and are opaque to the isolation layer.
type Record struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep-enough copy of the record: the Data map is copied one
// level deep so callers cannot mutate stored state through the returned map.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.Data != nil {
		out.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			out.Data[k] = v
		}
	}
	return &out
}
