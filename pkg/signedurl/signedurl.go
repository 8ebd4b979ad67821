// Package signedurl signs and verifies blob-transfer URLs. A signed URL
// carries a token binding the target URL, the blob key and the permitted
// transfer operation, so the blob gateway can authorize a bare PUT or GET
// without any other credentials.
package signedurl

import (
	"time"
)

// Op is the transfer operation a signed URL permits.
type Op string

const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
)

type Signer interface {
	// Sign signs a URL, permitting op on the blob key for ttl.
	Sign(url, key string, op Op, ttl time.Duration) (string, error)
}

type Verifier interface {
	// Verify verifies a signed URL and returns the blob key and the
	// permitted operation.
	Verify(signedURL string) (string, Op, error)
}

type SignedURLError struct {
	innerErr error
	message  string
}

// NewSignedURLError creates a new SignedURLError with the provided inner error and message.
func NewSignedURLError(innerErr error, message string) SignedURLError {
	return SignedURLError{
		innerErr: innerErr,
		message:  message,
	}
}

var ErrInvalidKey = NewSignedURLError(nil, "invalid key provided")

type SignatureVerificationError struct {
	SignedURLError
}

func NewSignatureVerificationError(innerErr error) SignatureVerificationError {
	return SignatureVerificationError{
		SignedURLError: SignedURLError{
			innerErr: innerErr,
			message:  "signature verification failed",
		},
	}
}

func (e SignatureVerificationError) Is(tgt error) bool {
	if _, ok := tgt.(SignatureVerificationError); ok {
		return true
	}
	return false
}

// Error implements the error interface.
func (e SignedURLError) Error() string {
	if e.innerErr != nil {
		return e.message + ": " + e.innerErr.Error()
	}
	return e.message
}

func (e SignedURLError) Unwrap() error {
	return e.innerErr
}
