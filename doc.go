// Package payugateway provides a payment gateway service for PayU's
// REST API. It registers orders, receives and authenticates PUSH
// notifications, and drives a payment state machine through the
// lifecycle the gateway reports.
//
// # Architecture
//
// The service is split into three layers:
//
//   - payu: the gateway adapter. A REST client with OAuth2 token
//     management, a callback signature verifier, an amount codec
//     between decimal major units and the gateway's minor-unit wire
//     format, and a reconciler that maps gateway order and refund
//     statuses onto state machine events.
//   - payment: the domain. A payment state machine with an explicit
//     transition table and guards, plus SQLite persistence.
//   - handler/router/infra: the HTTP surface. Chi routes, structured
//     logging with optional OpenSearch indexing, and environment
//     driven configuration.
//
// # Payment flow
//
//	create payment ──► register PayU order ──► redirect customer
//	                                               │
//	       notification (signed) ◄─────────────────┘
//	                │
//	   verify signature ──► reconcile status ──► fire transition
//
// Notifications are authenticated against the exact request bytes using
// the merchant's second key before any state change is applied.
// Unverified notifications never reach the state machine.
package payugateway
