package ratelimit

import (
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "default options",
			opts:    nil,
			wantErr: false,
		},
		{
			name: "with custom options",
			opts: []Option{
				WithRedisAddr("redis:6379"),
				WithDefaultLimit(50, 30*time.Second),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if m == nil {
				t.Error("New() returned nil middleware")
			}
		})
	}
}

func TestMiddleware_Name(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if name := m.Name(); name != "rate-limit" {
		t.Errorf("Name() = %q, want 'rate-limit'", name)
	}
}

func TestMiddleware_limitForService(t *testing.T) {
	m, err := New(
		WithDefaultLimit(100, time.Minute),
		WithServiceLimit("submit-offer", 20, time.Minute),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name       string
		service    string
		wantLimit  int
		wantWindow time.Duration
	}{
		{
			name:       "configured service",
			service:    "submit-offer",
			wantLimit:  20,
			wantWindow: time.Minute,
		},
		{
			name:       "unconfigured service uses defaults",
			service:    "get-snapshot",
			wantLimit:  100,
			wantWindow: time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, window := m.limitForService(tt.service)
			if limit != tt.wantLimit {
				t.Errorf("limitForService(%q) limit = %d, want %d", tt.service, limit, tt.wantLimit)
			}
			if window != tt.wantWindow {
				t.Errorf("limitForService(%q) window = %v, want %v", tt.service, window, tt.wantWindow)
			}
		})
	}
}

func TestExtractCaller(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "proposer id wins",
			data: []byte(`{"proposer_id":"p-1","target_id":"p-2"}`),
			want: "p-1",
		},
		{
			name: "participant id",
			data: []byte(`{"participant_id":"p-3","proposal_id":"pr-9"}`),
			want: "p-3",
		},
		{
			name: "join request falls back to name",
			data: []byte(`{"name":"Karim"}`),
			want: "name:Karim",
		},
		{
			name: "empty body",
			data: []byte(`{}`),
			want: "anonymous",
		},
		{
			name: "invalid json",
			data: []byte(`not json`),
			want: "anonymous",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &types.Msg{Data: tt.data}
			if got := extractCaller(msg); got != tt.want {
				t.Errorf("extractCaller() = %q, want %q", got, tt.want)
			}
		})
	}
}
