package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/gatewaylab/payu-gateway/handler"
	"github.com/gatewaylab/payu-gateway/infra/config"
	"github.com/gatewaylab/payu-gateway/payment"
	"github.com/gatewaylab/payu-gateway/payu"
)

// Routes registers all API routes
func Routes(r chi.Router, store *payment.Store, processor *payu.Processor) {
	paymentHandler := handler.NewPaymentHandler(store, processor, config.Validator())
	webhookHandler := handler.NewWebhookHandler(store, processor)
	healthHandler := handler.NewHealthHandler(store)

	// Health check endpoint
	r.Get("/health", healthHandler.Check)

	// Gateway notification endpoint; PayU retries on non-2xx
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payu/{paymentID}", webhookHandler.HandleNotification)
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", paymentHandler.CreatePayment)
			r.Get("/{paymentID}", paymentHandler.GetPayment)
			r.Post("/{paymentID}/sync", paymentHandler.SyncPayment)
			r.Post("/{paymentID}/capture", paymentHandler.CapturePayment)
			r.Post("/{paymentID}/release", paymentHandler.ReleasePayment)
			r.Post("/{paymentID}/refund", paymentHandler.RefundPayment)
		})
	})
}
