package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("transport error", func(t *testing.T) {
		err := NewTransportError("getInfo", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected transport error to be retriable")
		}

		if err.Error() != "getInfo: transport: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "getInfo: transport: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("application error", func(t *testing.T) {
		err := NewApplicationError("Trade", "It is not enough USD for purchase")

		if err.IsRetriable() {
			t.Error("Expected application error to not be retriable")
		}
		if err.Unwrap() != nil {
			t.Error("Application error should not wrap a cause")
		}
	})

	t.Run("IsKind through wrapping", func(t *testing.T) {
		err := fmt.Errorf("refresh orders: %w", NewApplicationError("ActiveOrders", "no orders"))

		if !IsKind(err, KindApplication) {
			t.Error("IsKind should see through fmt.Errorf wrapping")
		}
		if IsKind(err, KindTransport) {
			t.Error("IsKind should not match a different kind")
		}
		if IsKind(errors.New("plain"), KindApplication) {
			t.Error("IsKind should be false for plain errors")
		}
	})

	t.Run("IsRetriable helper", func(t *testing.T) {
		if !IsRetriable(NewTransportError("depth", baseErr)) {
			t.Error("IsRetriable should return true for transport error")
		}
		if IsRetriable(NewApplicationError("depth", "invalid pair")) {
			t.Error("IsRetriable should return false for application error")
		}
		if IsRetriable(errors.New("plain error")) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestIsBenign(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no orders", NewApplicationError("ActiveOrders", MsgNoOrders), true},
		{"wrapped no orders", fmt.Errorf("x: %w", NewApplicationError("ActiveOrders", MsgNoOrders)), true},
		{"other application error", NewApplicationError("ActiveOrders", "api key dont have trade permission"), false},
		{"transport", NewTransportError("ActiveOrders", errors.New(MsgNoOrders)), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBenign(tt.err); got != tt.want {
				t.Errorf("IsBenign() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"application", NewApplicationError("Trade", "It is not enough USD for purchase"), "It is not enough USD for purchase"},
		{"wrapped application", fmt.Errorf("cancel 2: %w", NewApplicationError("CancelOrder", "bad status")), "bad status"},
		{"transport", NewTransportError("depth", errors.New("connection refused")), "depth: transport: connection refused"},
		{"plain", ErrPublicOnly, ErrPublicOnly.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	baseErr := errors.New("missing value")
	err := &ConfigError{Field: "api.key", Err: baseErr}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [api.key]: missing value"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
}
