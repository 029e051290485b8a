package classify

import (
	"strings"

	"docpay/internal/domain/session"
)

// entry is one row of the provider-code mapping table.
type entry struct {
	reason session.FailureReason
	hint   string
}

// Daraja result codes observed on STK push queries and callbacks. Codes
// absent from this table fall through to message matching, then to
// ReasonUnknownFailure.
var codeTable = map[string]entry{
	"1":    {session.ReasonInsufficientFunds, "Your M-PESA balance is too low. Top up and try again."},
	"2":    {session.ReasonAmountOutOfRange, "The amount is below the minimum the provider accepts."},
	"3":    {session.ReasonAmountOutOfRange, "The amount is above the maximum the provider accepts."},
	"13":   {session.ReasonAmountOutOfRange, "The amount is invalid for this transaction."},
	"4":    {session.ReasonDailyLimitExceeded, "This payment would exceed your daily M-PESA limit. Try again tomorrow."},
	"5":    {session.ReasonAccountBalanceLimit, "This payment would take your account below its minimum balance."},
	"8":    {session.ReasonAccountBalanceLimit, "The receiving account would exceed its maximum balance."},
	"17":   {session.ReasonProviderServerError, "The payment provider had an internal problem. Try again shortly."},
	"26":   {session.ReasonRateLimited, "Too many requests in flight."},
	"1001": {session.ReasonProviderServerError, "Another transaction is already in progress for this number. Wait a minute and retry."},
	"1019": {session.ReasonUserDidNotRespond, "The payment request expired before it was confirmed. Try again."},
	"1025": {session.ReasonProviderServerError, "The payment provider could not send the prompt. Try again shortly."},
	"1026": {session.ReasonProviderServerError, "The payment provider had an internal problem. Try again shortly."},
	"1031": {session.ReasonUserCancelled, "The request was cancelled. Start a new payment when ready."},
	"1032": {session.ReasonUserCancelled, "You cancelled the payment prompt. Start a new payment when ready."},
	"1037": {session.ReasonUserDidNotRespond, "The prompt timed out on your phone. Keep your phone unlocked and try again."},
	"2001": {session.ReasonWrongPin, "The PIN entered was wrong. Try again with the correct M-PESA PIN."},
	"9999": {session.ReasonProviderServerError, "The payment provider had an internal problem. Try again shortly."},
}

// substring fallbacks, checked in order against the lowercased message.
var messageTable = []struct {
	needle string
	entry  entry
}{
	{"insufficient", entry{session.ReasonInsufficientFunds, "Your M-PESA balance is too low. Top up and try again."}},
	{"wrong pin", entry{session.ReasonWrongPin, "The PIN entered was wrong. Try again with the correct M-PESA PIN."}},
	{"cancel", entry{session.ReasonUserCancelled, "The request was cancelled. Start a new payment when ready."}},
	{"expired", entry{session.ReasonUserDidNotRespond, "The payment request expired before it was confirmed. Try again."}},
	{"timeout", entry{session.ReasonUserDidNotRespond, "The prompt timed out on your phone. Try again."}},
	{"unreachable", entry{session.ReasonUserDidNotRespond, "Your phone could not be reached. Check signal and try again."}},
	{"daily limit", entry{session.ReasonDailyLimitExceeded, "This payment would exceed your daily M-PESA limit."}},
	{"less than minimum", entry{session.ReasonAmountOutOfRange, "The amount is below the provider minimum."}},
	{"more than maximum", entry{session.ReasonAmountOutOfRange, "The amount is above the provider maximum."}},
	{"balance", entry{session.ReasonAccountBalanceLimit, "An account balance limit blocked this payment."}},
	{"spike arrest", entry{session.ReasonRateLimited, "Too many requests in flight."}},
	{"internal", entry{session.ReasonProviderServerError, "The payment provider had an internal problem. Try again shortly."}},
}

// Classify maps a provider result code and message to a stable failure
// reason plus a remediation hint. It is total: any input, including empty
// or unrecognized values, yields a defined reason.
func Classify(code, message string) (session.FailureReason, string) {
	if e, ok := codeTable[strings.TrimSpace(code)]; ok {
		return e.reason, e.hint
	}
	msg := strings.ToLower(message)
	for _, m := range messageTable {
		if strings.Contains(msg, m.needle) {
			return m.entry.reason, m.entry.hint
		}
	}
	return session.ReasonUnknownFailure, "The payment could not be completed. Try again or contact support."
}
