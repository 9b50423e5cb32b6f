package tracing

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.method", "POST"),
		attribute.String("admin_token", "tok_live_123"),
		attribute.String("card_last4", "4242"),
		attribute.String("webhook_secret", "whsec_abc"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.method" {
		t.Fatalf("unexpected attributes kept: %+v", attrs)
	}
}

func TestSafeErrorStripsDetail(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	got := SafeError(errors.New("patient 42 exceeded allowance"))
	if got == nil {
		t.Fatal("expected an error")
	}
	if got.Error() != "*errors.errorString" {
		t.Fatalf("safe error = %q, want type name only", got.Error())
	}
}
