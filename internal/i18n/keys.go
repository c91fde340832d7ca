// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAuthSessionStale  = "auth.session_stale"
	KeyAuthRoleDenied    = "auth.role_denied"
	KeyAuthUnregistered  = "auth.unregistered"
	KeyAuthLogoutSuccess = "auth.logout_success"
	KeyAuthProofRejected = "auth.proof_rejected"

	// Certificates
	KeyCertificateIssued         = "certificate.issued"
	KeyCertificateNotFound       = "certificate.not_found"
	KeyCertificateStageRegressed = "certificate.stage_regressed"
	KeyCertificateTerminal       = "certificate.terminal"
	KeyCertificateStageForbidden = "certificate.stage_forbidden"
	KeyCertificateTxUnknown      = "certificate.tx_unknown"
	KeyCertificateDuplicate      = "certificate.duplicate"

	// Verification, keyed by ErrorKind
	KeyVerificationSuccess           = "verification.success"
	KeyVerificationMissingLookupKey  = "verification.MissingLookupKey"
	KeyVerificationNotFound          = "verification.NotFound"
	KeyVerificationMismatch          = "verification.Mismatch"
	KeyVerificationLedgerUnavailable = "verification.LedgerUnavailable"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"

	// Infrastructure
	KeyLedgerUnavailable = "ledger.unavailable"
	KeyRateLimited       = "rate.limited"
)

// VerificationKey returns the message key for a verification error kind.
func VerificationKey(kind string) string {
	return "verification." + kind
}
