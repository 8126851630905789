package infra

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment returns the hex HMAC-SHA256 of "gatewayOrderID|paymentID", the
// signature the gateway attaches to a successful payment callback.
func SignPayment(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifyPaymentSignature(secret, gatewayOrderID, paymentID, signature string) bool {
	want := SignPayment(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}
