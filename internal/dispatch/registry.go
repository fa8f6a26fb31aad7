package dispatch

import "context"

// Tool represents a callable function on the dispatch boundary. The
// Parameters map is a JSON-schema fragment in the shape LLM providers
// expect, so the voice pipeline can advertise the functions verbatim.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Handler     func(ctx context.Context, args map[string]any, sessionID string) (map[string]any, error) `json:"-"`
}

// Registry holds the available functions in registration order.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry. Re-registering a name
// replaces the handler but keeps its position.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil if unknown.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// List returns function definitions for the LLM, in registration order.
func (r *Registry) List() []map[string]any {
	result := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	return result
}

func (d *Dispatcher) registerBuiltins() {
	d.registry.Register(&Tool{
		Name: "share_information",
		Description: "Record a fact learned from the customer during the call. " +
			"Call this whenever the customer provides new information: identity, debt amounts, qualification answers, banking details.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"information": map[string]any{
					"type":        "string",
					"description": "The fact to record, in plain language",
				},
				"category": map[string]any{
					"type":        "string",
					"description": "Free-form tag grouping related facts (e.g. qualification, debt_info, personal_info)",
				},
				"caller_id": map[string]any{
					"type":        "string",
					"description": "Identifier of the caller the fact concerns",
				},
			},
			"required": []string{"information"},
		},
		Handler: d.handleShareInformation,
	})

	d.registry.Register(&Tool{
		Name: "end_call",
		Description: "Close the current call session. Records a call summary with the reason " +
			"and how many facts were captured during the session.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Why the call ended (e.g. customer_qualified_transfer, not_qualified, user_requested)",
				},
				"caller_id": map[string]any{
					"type":        "string",
					"description": "Identifier of the caller",
				},
				"duration": map[string]any{
					"type":        "integer",
					"description": "Call duration in seconds",
				},
			},
		},
		Handler: d.handleEndCall,
	})

	d.registry.Register(&Tool{
		Name: "get_shared_information",
		Description: "Retrieve previously recorded facts, newest first. " +
			"Filter by category and/or caller to avoid asking the customer redundant questions.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": map[string]any{
					"type":        "string",
					"description": "Only return facts with this exact category",
				},
				"caller_id": map[string]any{
					"type":        "string",
					"description": "Only return facts recorded for this caller",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of facts to return (default 10)",
				},
			},
		},
		Handler: d.handleGetSharedInformation,
	})
}
