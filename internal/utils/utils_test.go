package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUpperAlphanumeric(t *testing.T) {
	s, err := GenerateUpperAlphanumeric(6)
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, s)
}

func TestSessionTokenRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateSessionToken("0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "Producer", 3, 1)
	require.NoError(t, err)

	claims, err := ValidateSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "Producer", claims.Role)
	assert.Equal(t, uint64(3), claims.Generation)
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", claims.Subject)

	SetJWTSecret("rotated")
	_, err = ValidateSessionToken(token)
	assert.Error(t, err)
}

func TestExpiredSessionToken(t *testing.T) {
	SetJWTSecret("test-secret")
	token, err := GenerateSessionToken("0x70997970C51812dc3A010C7d01b50e0d17dc79C8", "Retailer", 1, -1)
	require.NoError(t, err)

	_, err = ValidateSessionToken(token)
	assert.Error(t, err)
}

type lookupRequest struct {
	Address string `validate:"required,eth_addr"`
	CertID  string `validate:"omitempty,cert_id"`
	TxHash  string `validate:"omitempty,tx_hash"`
}

func TestValidateStruct(t *testing.T) {
	ok := lookupRequest{
		Address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		CertID:  "CERT-1700000000000-AB12CD",
		TxHash:  "0x" + "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}
	assert.NoError(t, ValidateStruct(&ok))

	bad := lookupRequest{Address: "nope", CertID: "CERT-17-ab12cd", TxHash: "0x12"}
	errs := GetValidationErrors(ValidateStruct(&bad))
	require.Len(t, errs, 3)
	tags := []string{errs[0].Tag, errs[1].Tag, errs[2].Tag}
	assert.ElementsMatch(t, []string{"eth_addr", "cert_id", "tx_hash"}, tags)
}

func TestPaginationParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)

	params := GetPaginationParams(c)
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, 40, params.Offset())

	result := CreatePaginationResult([]int{1}, 41, params)
	assert.Equal(t, 3, result.TotalPages)
}
