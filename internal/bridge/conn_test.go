// conn_test.go — Tests for the wire-bridge health helpers.
package bridge

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestIsConnectionError_NilError(t *testing.T) {
	t.Parallel()
	if IsConnectionError(nil) {
		t.Error("expected false for nil error")
	}
}

func TestIsConnectionError_OpError(t *testing.T) {
	t.Parallel()
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: errors.New("connection refused"),
	}
	if !IsConnectionError(opErr) {
		t.Error("expected true for *net.OpError")
	}
}

func TestIsConnectionError_WrappedOpError(t *testing.T) {
	t.Parallel()
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: errors.New("connection refused"),
	}
	wrapped := errors.Join(errors.New("context"), opErr)
	if !IsConnectionError(wrapped) {
		t.Error("expected true for wrapped *net.OpError")
	}
}

func TestIsConnectionError_DNSError(t *testing.T) {
	t.Parallel()
	dnsErr := &net.DNSError{
		Err:  "no such host",
		Name: "nonexistent.example.com",
	}
	if !IsConnectionError(dnsErr) {
		t.Error("expected true for *net.DNSError")
	}
}

func TestIsConnectionError_WrappedDNSError(t *testing.T) {
	t.Parallel()
	dnsErr := &net.DNSError{
		Err:  "no such host",
		Name: "nonexistent.example.com",
	}
	wrapped := errors.Join(errors.New("lookup failed"), dnsErr)
	if !IsConnectionError(wrapped) {
		t.Error("expected true for wrapped *net.DNSError")
	}
}

func TestIsConnectionError_ConnectionRefusedString(t *testing.T) {
	t.Parallel()
	err := errors.New("dial tcp 127.0.0.1:7890: connection refused")
	if !IsConnectionError(err) {
		t.Error("expected true for error containing 'connection refused'")
	}
}

func TestIsConnectionError_NoSuchHostString(t *testing.T) {
	t.Parallel()
	err := errors.New("lookup nonexistent.local: no such host")
	if !IsConnectionError(err) {
		t.Error("expected true for error containing 'no such host'")
	}
}

func TestIsConnectionError_UnrelatedError(t *testing.T) {
	t.Parallel()
	err := errors.New("timeout exceeded")
	if IsConnectionError(err) {
		t.Error("expected false for unrelated error")
	}
}

func TestIsConnectionError_EmptyError(t *testing.T) {
	t.Parallel()
	err := errors.New("")
	if IsConnectionError(err) {
		t.Error("expected false for empty error message")
	}
}

func TestIsConnectionError_MatchesSubstringInsideLongerWord(t *testing.T) {
	t.Parallel()
	err := errors.New("no such hostile environment")
	if !IsConnectionError(err) {
		t.Error("expected true: 'no such host' is a substring of the message")
	}
}

func TestAwaitReady_ReturnsTrueOnceProbePasses(t *testing.T) {
	t.Parallel()
	calls := 0
	ok := AwaitReady(context.Background(), func(context.Context) bool {
		calls++
		return calls >= 3
	})
	if !ok {
		t.Fatal("expected AwaitReady to report ready")
	}
	if calls != 3 {
		t.Fatalf("probe calls = %d, want 3", calls)
	}
}

func TestAwaitReady_GivesUpWhenContextEnds(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if AwaitReady(ctx, func(context.Context) bool { return false }) {
		t.Fatal("expected AwaitReady to give up on context deadline")
	}
}
