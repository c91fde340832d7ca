// internal/models/verification.go
package models

type ErrorKind string

const (
	ErrorKindMissingLookupKey  ErrorKind = "MissingLookupKey"
	ErrorKindNotFound          ErrorKind = "NotFound"
	ErrorKindMismatch          ErrorKind = "Mismatch"
	ErrorKindLedgerUnavailable ErrorKind = "LedgerUnavailable"
)

// Retryable reports whether a caller may retry the same lookup.
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindLedgerUnavailable
}

type VerificationResult struct {
	Valid          bool               `json:"valid"`
	Certificate    *CertificateRecord `json:"certificate,omitempty"`
	BlockchainData *BlockchainData    `json:"blockchainData,omitempty"`
	Error          ErrorKind          `json:"error,omitempty"`
}

func VerificationFailure(kind ErrorKind) VerificationResult {
	return VerificationResult{Valid: false, Error: kind}
}

func VerificationSuccess(cert Certificate) VerificationResult {
	record := cert.CertificateRecord
	anchor := cert.Anchor
	return VerificationResult{
		Valid:          true,
		Certificate:    &record,
		BlockchainData: &anchor,
	}
}
