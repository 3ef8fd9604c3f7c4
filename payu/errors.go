package payu

import "fmt"

// GatewayResponse carries the raw PayU response attached to an error for
// operator diagnostics.
type GatewayResponse struct {
	StatusCode int
	Body       []byte
}

// CredentialsError means OAuth token acquisition failed. The current call
// is fatal; the next attempt re-authenticates from scratch.
type CredentialsError struct {
	Response GatewayResponse
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("payu: cannot authenticate (status %d): %s", e.Response.StatusCode, e.Response.Body)
}

// LockFailure means order creation (the funds lock) was rejected.
type LockFailure struct {
	Response GatewayResponse
}

func (e *LockFailure) Error() string {
	return fmt.Sprintf("payu: error creating order (status %d): %s", e.Response.StatusCode, e.Response.Body)
}

// RefundFailure means a refund request was rejected.
type RefundFailure struct {
	Response GatewayResponse
}

func (e *RefundFailure) Error() string {
	return fmt.Sprintf("payu: error creating refund (status %d): %s", e.Response.StatusCode, e.Response.Body)
}

// ChargeFailure means capturing a locked order was rejected.
type ChargeFailure struct {
	Response GatewayResponse
}

func (e *ChargeFailure) Error() string {
	return fmt.Sprintf("payu: error charging locked payment (status %d): %s", e.Response.StatusCode, e.Response.Body)
}

// CommunicationError is a generic non-2xx on read-only or administrative
// endpoints.
type CommunicationError struct {
	Op       string
	Response GatewayResponse
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("payu: %s failed (status %d): %s", e.Op, e.Response.StatusCode, e.Response.Body)
}

// CallbackErrorCode identifies why an inbound notification was rejected.
type CallbackErrorCode string

const (
	CallbackMissingBody          CallbackErrorCode = "missing_body"
	CallbackNoSignature          CallbackErrorCode = "no_signature"
	CallbackLegacyDisabled       CallbackErrorCode = "legacy_algorithm_disabled"
	CallbackUnsupportedAlgorithm CallbackErrorCode = "unsupported_algorithm"
	CallbackBadSignature         CallbackErrorCode = "bad_signature"
)

// InvalidCallbackError means an inbound notification failed verification.
// The notification must be rejected with a non-2xx response so the gateway
// retries delivery.
type InvalidCallbackError struct {
	Code   CallbackErrorCode
	Detail string
}

func (e *InvalidCallbackError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("payu: invalid callback: %s", e.Code)
	}
	return fmt.Sprintf("payu: invalid callback: %s: %s", e.Code, e.Detail)
}
