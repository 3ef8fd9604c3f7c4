package payu

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"net/http"
	"strings"
)

// Signature header names accepted on inbound notifications, checked in
// this order.
const (
	HeaderSignature    = "OpenPayu-Signature"
	HeaderSignatureAlt = "X-OpenPayu-Signature"
)

// supportedAlgorithms maps the algorithm token from the signature header
// to a hash constructor. PayU historically signed with MD5; SHA-256 is the
// only acceptable default today.
var supportedAlgorithms = map[string]func() hash.Hash{
	"MD5":     md5.New,
	"SHA-256": sha256.New,
	"SHA256":  sha256.New,
}

// Verifier authenticates inbound PayU notifications. It is a pure function
// of the raw request body, the headers, the shared second key and the
// legacy-algorithm policy flag; it performs no I/O.
type Verifier struct {
	SecondKey string
	// AllowMD5 permits legacy MD5-signed callbacks and makes MD5 the
	// default algorithm when the header names none. Off by default:
	// callbacks never silently downgrade to the weak algorithm.
	AllowMD5 bool
}

// Verify checks the signature header against a digest of the exact bytes
// PayU sent. Any re-serialization of the body would break verification, so
// rawBody must be the unmodified transport body. Returns an
// *InvalidCallbackError on any failure.
func (v Verifier) Verify(rawBody []byte, headers http.Header) error {
	if rawBody == nil {
		return &InvalidCallbackError{
			Code:   CallbackMissingBody,
			Detail: "raw request body is required for signature verification",
		}
	}

	raw := headers.Get(HeaderSignature)
	if raw == "" {
		raw = headers.Get(HeaderSignatureAlt)
	}
	if raw == "" {
		return &InvalidCallbackError{Code: CallbackNoSignature}
	}

	parsed := parseSignatureHeader(raw)

	defaultAlgorithm := "SHA-256"
	if v.AllowMD5 {
		defaultAlgorithm = "MD5"
	}
	algoName := strings.ToUpper(parsed["algorithm"])
	if algoName == "" {
		algoName = defaultAlgorithm
	}
	signature := parsed["signature"]
	if signature == "" {
		return &InvalidCallbackError{Code: CallbackNoSignature}
	}

	if algoName == "MD5" && !v.AllowMD5 {
		return &InvalidCallbackError{
			Code:   CallbackLegacyDisabled,
			Detail: "MD5 signatures are disabled; enable the legacy callback flag to allow them",
		}
	}

	newHash, ok := supportedAlgorithms[algoName]
	if !ok {
		return &InvalidCallbackError{
			Code:   CallbackUnsupportedAlgorithm,
			Detail: fmt.Sprintf("%s (supported: MD5, SHA-256, SHA256)", algoName),
		}
	}

	h := newHash()
	h.Write(rawBody)
	h.Write([]byte(v.SecondKey))
	expected := hex.EncodeToString(h.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		// Both values are included for operator diagnosis; this error ends
		// up in server-side logs, never in a client-facing response.
		return &InvalidCallbackError{
			Code:   CallbackBadSignature,
			Detail: fmt.Sprintf("got %q, expected %q", signature, expected),
		}
	}
	return nil
}

// parseSignatureHeader splits a "key=value;key=value" header into a map.
// Tokens without "=" are ignored.
func parseSignatureHeader(raw string) map[string]string {
	parsed := make(map[string]string)
	for _, item := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(item, "=")
		if !found {
			continue
		}
		parsed[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return parsed
}
