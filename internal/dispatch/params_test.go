package dispatch

import "testing"

func TestDecodeShareParams(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want ShareParams
	}{
		{
			name: "full",
			args: map[string]any{"information": "a", "category": "debt_info", "caller_id": "c1"},
			want: ShareParams{Information: "a", Category: "debt_info", CallerID: "c1"},
		},
		{
			name: "defaults",
			args: map[string]any{"information": "a"},
			want: ShareParams{Information: "a", Category: "general", CallerID: "unknown"},
		},
		{
			name: "explicit empty strings preserved",
			args: map[string]any{"information": "a", "category": "", "caller_id": ""},
			want: ShareParams{Information: "a", Category: "", CallerID: ""},
		},
		{
			name: "wrong types fall back",
			args: map[string]any{"information": 42, "category": true},
			want: ShareParams{Information: "", Category: "general", CallerID: "unknown"},
		},
		{
			name: "nil args",
			args: nil,
			want: ShareParams{Information: "", Category: "general", CallerID: "unknown"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeShareParams(tt.args); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeEndParams(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want EndParams
	}{
		{
			name: "full",
			args: map[string]any{"reason": "not_qualified", "caller_id": "c1", "duration": float64(120)},
			want: EndParams{Reason: "not_qualified", CallerID: "c1", Duration: 120},
		},
		{
			name: "defaults",
			args: nil,
			want: EndParams{Reason: "user_requested", CallerID: "unknown", Duration: 0},
		},
		{
			name: "negative duration clamped",
			args: map[string]any{"duration": float64(-5)},
			want: EndParams{Reason: "user_requested", CallerID: "unknown", Duration: 0},
		},
		{
			name: "native int accepted",
			args: map[string]any{"duration": 90},
			want: EndParams{Reason: "user_requested", CallerID: "unknown", Duration: 90},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeEndParams(tt.args); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeGetParams(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want GetParams
	}{
		{
			name: "defaults",
			args: nil,
			want: GetParams{Limit: 10},
		},
		{
			name: "explicit zero limit preserved",
			args: map[string]any{"limit": float64(0)},
			want: GetParams{Limit: 0},
		},
		{
			name: "negative limit clamped",
			args: map[string]any{"limit": float64(-1)},
			want: GetParams{Limit: 0},
		},
		{
			name: "filters",
			args: map[string]any{"category": "qualification", "caller_id": "c1", "limit": float64(5)},
			want: GetParams{Category: "qualification", CallerID: "c1", Limit: 5},
		},
		{
			name: "non-numeric limit falls back",
			args: map[string]any{"limit": "lots"},
			want: GetParams{Limit: 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeGetParams(tt.args); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
