package payu

// OrderStatus is the order lifecycle status reported by PayU. It is only
// ever received from the gateway, never set locally.
type OrderStatus string

const (
	OrderStatusNew                    OrderStatus = "NEW"
	OrderStatusPending                OrderStatus = "PENDING"
	OrderStatusCanceled               OrderStatus = "CANCELED"
	OrderStatusCompleted              OrderStatus = "COMPLETED"
	OrderStatusWaitingForConfirmation OrderStatus = "WAITING_FOR_CONFIRMATION"
)

// RefundStatus is the refund lifecycle status reported by PayU.
type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusFinalized RefundStatus = "FINALIZED"
	RefundStatusCanceled  RefundStatus = "CANCELED"
)

// ResponseStatus is the statusCode value inside PayU response envelopes.
type ResponseStatus string

const (
	ResponseStatusSuccess                 ResponseStatus = "SUCCESS"
	ResponseStatusWarningContinueRedirect ResponseStatus = "WARNING_CONTINUE_REDIRECT"
	ResponseStatusWarningContinue3DS      ResponseStatus = "WARNING_CONTINUE_3DS"
	ResponseStatusWarningContinueCVV      ResponseStatus = "WARNING_CONTINUE_CVV"
)

// AcceptedCurrencies lists the ISO 4217 currencies PayU settles in.
var AcceptedCurrencies = []string{
	"BGN", "CHF", "CZK", "DKK", "EUR", "GBP", "HRK", "HUF",
	"NOK", "PLN", "RON", "RUB", "SEK", "UAH", "USD",
}

// IsCurrencySupported reports whether code is a currency PayU settles in.
func IsCurrencySupported(code string) bool {
	for _, c := range AcceptedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// Buyer is the buyer object sent with an order. The client flattens it
// into the request tree itself so only set fields reach the wire; the
// struct is never marshalled directly.
type Buyer struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// Product is a single order line in PayU's format. UnitPrice is a decimal
// major-unit amount here; the client flattens products into the request
// tree and centifies amounts on the way out.
type Product struct {
	Name      string
	UnitPrice any
	Quantity  int
}
