package dispatch

// Parameter decoding for the function-call boundary. Callers hand us a
// raw string-keyed bag (JSON-decoded, so numbers arrive as float64);
// each operation gets a typed struct with its defaults applied before
// any state is touched.

// ShareParams are the arguments to share_information.
type ShareParams struct {
	Information string
	Category    string
	CallerID    string
}

// EndParams are the arguments to end_call.
type EndParams struct {
	Reason   string
	CallerID string
	Duration int
}

// GetParams are the arguments to get_shared_information. Empty
// Category/CallerID mean "no filter".
type GetParams struct {
	Category string
	CallerID string
	Limit    int
}

func decodeShareParams(args map[string]any) ShareParams {
	return ShareParams{
		Information: stringArg(args, "information", ""),
		Category:    stringArg(args, "category", "general"),
		CallerID:    stringArg(args, "caller_id", "unknown"),
	}
}

func decodeEndParams(args map[string]any) EndParams {
	p := EndParams{
		Reason:   stringArg(args, "reason", "user_requested"),
		CallerID: stringArg(args, "caller_id", "unknown"),
		Duration: intArg(args, "duration", 0),
	}
	if p.Duration < 0 {
		p.Duration = 0
	}
	return p
}

func decodeGetParams(args map[string]any) GetParams {
	p := GetParams{
		Category: stringArg(args, "category", ""),
		CallerID: stringArg(args, "caller_id", ""),
		Limit:    intArg(args, "limit", 10),
	}
	if p.Limit < 0 {
		p.Limit = 0
	}
	return p
}

// stringArg returns the string at key, or def when the key is absent
// or not a string. An explicit empty string is preserved: records
// stored with category "" surface as "unknown" in the summary.
func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return def
}

// intArg returns the integer at key, or def when the key is absent or
// not numeric. An explicit zero is preserved (limit=0 means an empty
// page, not the default page size).
func intArg(args map[string]any, key string, def int) int {
	v, ok := args[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}
