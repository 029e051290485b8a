package classify

import (
	"testing"

	"docpay/internal/domain/session"
)

func TestClassifyKnownCodes(t *testing.T) {
	cases := []struct {
		code    string
		message string
		want    session.FailureReason
	}{
		{"1032", "Request cancelled by user", session.ReasonUserCancelled},
		{"1031", "", session.ReasonUserCancelled},
		{"1037", "DS timeout user cannot be reached", session.ReasonUserDidNotRespond},
		{"1019", "Transaction has expired", session.ReasonUserDidNotRespond},
		{"2001", "The initiator information is invalid", session.ReasonWrongPin},
		{"1", "The balance is insufficient for the transaction", session.ReasonInsufficientFunds},
		{"2", "", session.ReasonAmountOutOfRange},
		{"3", "", session.ReasonAmountOutOfRange},
		{"13", "", session.ReasonAmountOutOfRange},
		{"4", "", session.ReasonDailyLimitExceeded},
		{"5", "", session.ReasonAccountBalanceLimit},
		{"8", "", session.ReasonAccountBalanceLimit},
		{"26", "Traffic blocking condition in place", session.ReasonRateLimited},
		{"17", "Internal failure", session.ReasonProviderServerError},
		{"1001", "Unable to lock subscriber", session.ReasonProviderServerError},
		{"1025", "", session.ReasonProviderServerError},
		{"1026", "", session.ReasonProviderServerError},
		{"9999", "", session.ReasonProviderServerError},
	}
	for _, tc := range cases {
		got, hint := Classify(tc.code, tc.message)
		if got != tc.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tc.code, tc.message, got, tc.want)
		}
		if hint == "" {
			t.Errorf("Classify(%q, %q) returned empty hint", tc.code, tc.message)
		}
	}
}

func TestClassifyMessageFallback(t *testing.T) {
	cases := []struct {
		message string
		want    session.FailureReason
	}{
		{"The balance is insufficient for the transaction", session.ReasonInsufficientFunds},
		{"Request Cancelled by user", session.ReasonUserCancelled},
		{"transaction expired before confirmation", session.ReasonUserDidNotRespond},
		{"would exceed the daily limit", session.ReasonDailyLimitExceeded},
		{"Spike arrest violation", session.ReasonRateLimited},
		{"internal server error", session.ReasonProviderServerError},
	}
	for _, tc := range cases {
		got, _ := Classify("some-unmapped-code", tc.message)
		if got != tc.want {
			t.Errorf("Classify(unmapped, %q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

// Classification must be total: any input yields a defined reason.
func TestClassifyTotality(t *testing.T) {
	inputs := [][2]string{
		{"", ""},
		{"   ", "   "},
		{"9993842", "something nobody has seen before"},
		{"ABC-123", ""},
		{"", "\x00\xff garbage"},
		{"0", ""}, // success code should never be classified, but must not panic
	}
	for _, in := range inputs {
		reason, hint := Classify(in[0], in[1])
		if reason == "" {
			t.Errorf("Classify(%q, %q) returned empty reason", in[0], in[1])
		}
		if hint == "" {
			t.Errorf("Classify(%q, %q) returned empty hint", in[0], in[1])
		}
	}

	reason, _ := Classify("no-such-code", "no recognizable words here")
	if reason != session.ReasonUnknownFailure {
		t.Errorf("unrecognized input = %s, want unknown_failure", reason)
	}
}
