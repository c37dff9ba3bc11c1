package mailer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := WrapAPI(errors.New("boom"))
	if got := err.Error(); got != "api error: boom" {
		t.Errorf("Error(): got %q, want %q", got, "api error: boom")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("root cause")
	err := WrapTransport(fmt.Errorf("request failed: %w", sentinel))

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should reach the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		want   Kind
		wantOK bool
	}{
		{name: "serialization", err: WrapSerialization(errors.New("x")), want: KindSerialization, wantOK: true},
		{name: "transport", err: WrapTransport(errors.New("x")), want: KindTransport, wantOK: true},
		{name: "api", err: WrapAPI(errors.New("x")), want: KindAPI, wantOK: true},
		{name: "rewrapped", err: fmt.Errorf("delivery: %w", WrapAPI(errors.New("x"))), want: KindAPI, wantOK: true},
		{name: "unclassified", err: errors.New("x"), wantOK: false},
		{name: "nil", err: nil, wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kind, ok := KindOf(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("KindOf() ok: got %v, want %v", ok, tt.wantOK)
			}
			if ok && kind != tt.want {
				t.Errorf("KindOf(): got %q, want %q", kind, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	apiErr := &smithy.GenericAPIError{Code: "MessageRejected", Message: "not verified"}
	classified := Classify(apiErr)

	if kind, ok := KindOf(classified); !ok || kind != KindAPI {
		t.Errorf("API error kind: got %v, want %v", kind, KindAPI)
	}

	// The provider detail stays reachable after classification.
	var target smithy.APIError
	if !errors.As(classified, &target) {
		t.Error("errors.As should still find the API error")
	} else if target.ErrorCode() != "MessageRejected" {
		t.Errorf("ErrorCode: got %q, want %q", target.ErrorCode(), "MessageRejected")
	}

	plain := Classify(errors.New("dial tcp: i/o timeout"))
	if kind, ok := KindOf(plain); !ok || kind != KindTransport {
		t.Errorf("plain error kind: got %v, want %v", kind, KindTransport)
	}
}

func TestIsThrottle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "v2 throttle code",
			err:  &smithy.GenericAPIError{Code: "TooManyRequestsException"},
			want: true,
		},
		{
			name: "v1 throttle code",
			err:  &smithy.GenericAPIError{Code: "Throttling"},
			want: true,
		},
		{
			name: "generic throttle code",
			err:  &smithy.GenericAPIError{Code: "ThrottlingException"},
			want: true,
		},
		{
			name: "classified throttle",
			err:  Classify(&smithy.GenericAPIError{Code: "TooManyRequestsException"}),
			want: true,
		},
		{
			name: "other api error",
			err:  &smithy.GenericAPIError{Code: "MessageRejected"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsThrottle(tt.err); got != tt.want {
				t.Errorf("IsThrottle(): got %v, want %v", got, tt.want)
			}
		})
	}
}
