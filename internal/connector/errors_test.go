package connector

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Classification(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		retryable bool
		quota     bool
	}{
		{ErrorTransient, true, false},
		{ErrorQuotaExhausted, false, true},
		{ErrorAuthentication, false, false},
		{ErrorBadData, false, false},
		{ErrorBlocked, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			err := fmt.Errorf("collect: %w", NewError(tt.category, "searchapi", "boom", nil))

			if IsRetryable(err) != tt.retryable {
				t.Errorf("Expected retryable=%v", tt.retryable)
			}
			if IsQuotaExhausted(err) != tt.quota {
				t.Errorf("Expected quota=%v", tt.quota)
			}
			if GetCategory(err) != tt.category {
				t.Errorf("Expected category %s, got %s", tt.category, GetCategory(err))
			}
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	underlying := errors.New("connection reset")
	err := NewError(ErrorTransient, "searchapi", "request failed", underlying)

	if !errors.Is(err, underlying) {
		t.Error("Expected underlying error to be reachable")
	}
	if got := err.Error(); got != "source searchapi [transient]: request failed: connection reset" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestGetCategory_UnknownError(t *testing.T) {
	if GetCategory(errors.New("plain")) != ErrorInternal {
		t.Error("Expected plain errors to be internal")
	}
}

func TestRegistry_Stats(t *testing.T) {
	primary := &countingConnector{}
	r := NewRegistry(primary, nil)

	if r.Fallback() != nil {
		t.Error("Expected nil fallback")
	}
	if c, ok := r.Get("fake"); !ok || c != Connector(primary) {
		t.Error("Expected primary to be registered by ID")
	}

	stats := r.Stats()
	if len(stats) != 1 || stats[0].Source != "fake" || !stats[0].Available {
		t.Errorf("Unexpected stats %+v", stats)
	}
}
