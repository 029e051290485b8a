package daraja

import (
	"encoding/json"
	"fmt"

	"docpay/internal/provider"
)

// ParseCallback converts a Daraja STK callback payload into a generic
// provider.CallbackResult. Metadata item values arrive loosely typed;
// sandboxes have been seen serializing numbers as strings.
func ParseCallback(body []byte) (provider.CallbackResult, error) {
	var stk struct {
		Body struct {
			StkCallback struct {
				MerchantRequestID string `json:"MerchantRequestID"`
				CheckoutRequestID string `json:"CheckoutRequestID"`
				ResultCode        int    `json:"ResultCode"`
				ResultDesc        string `json:"ResultDesc"`
				CallbackMetadata  struct {
					Item []struct {
						Name  string `json:"Name"`
						Value any    `json:"Value"`
					} `json:"Item"`
				} `json:"CallbackMetadata"`
			} `json:"stkCallback"`
		} `json:"Body"`
	}
	if err := json.Unmarshal(body, &stk); err != nil || stk.Body.StkCallback.CheckoutRequestID == "" {
		return provider.CallbackResult{}, fmt.Errorf("unrecognized callback shape")
	}

	cb := stk.Body.StkCallback
	res := provider.CallbackResult{
		ProviderTransactionID: cb.CheckoutRequestID,
		ResultCode:            fmt.Sprintf("%d", cb.ResultCode),
		ResultDesc:            cb.ResultDesc,
	}
	for _, it := range cb.CallbackMetadata.Item {
		switch it.Name {
		case "Amount":
			switch v := it.Value.(type) {
			case float64:
				res.Amount = int(v)
			case string:
				var f float64
				if err := json.Unmarshal([]byte(v), &f); err == nil {
					res.Amount = int(f)
				}
			}
		case "MpesaReceiptNumber":
			if s, ok := it.Value.(string); ok {
				res.Receipt = s
			}
		case "PhoneNumber":
			switch v := it.Value.(type) {
			case float64:
				res.Phone = fmt.Sprintf("%.0f", v)
			case string:
				res.Phone = v
			}
		}
	}
	return res, nil
}
