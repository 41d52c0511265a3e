package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactBody struct {
	City  string `json:"city" validate:"required"`
	Phone string `json:"phone" validate:"required,max=20"`
}

func TestDecodeJSONBodyReportsJSONFieldNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"city":""}`))
	var body contactBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	assert.Equal(t, "is required", details["city"])
	assert.Equal(t, "is required", details["phone"])
}

func TestDecodeJSONBodyRejectsUnknownAndEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"city":"x","phone":"1","extra":1}`))
	var body contactBody
	assert.True(t, pkgerrors.IsCode(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)
	assert.Equal(t, "request body is required", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyErrorDetails(t *testing.T) {
	decode := func(raw string) *pkgerrors.Error {
		var body contactBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw)), &body)
		require.Error(t, err, raw)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeValidation, typed.Code())
		return typed
	}

	assert.Equal(t, map[string]string{"extra": "is not allowed"}, decode(`{"city":"x","phone":"1","extra":1}`).Details())
	assert.Equal(t, map[string]string{"city": "must be a string"}, decode(`{"city":5}`).Details())
	assert.Equal(t, "request body is not valid JSON", decode(`{"city":`).Message())
	assert.Equal(t, "request body must contain a single JSON object", decode(`{"city":"x","phone":"1"} {}`).Message())
	assert.Contains(t, decode(`"`+strings.Repeat("a", MaxBodyBytes)+`"`).Message(), "exceeds")
}

func TestParseIDList(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ids, err := ParseIDList(a.String()+", nope ,"+b.String()+","+a.String(), "items")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = ParseIDList(" , x", "items")
	require.Error(t, err)
	_, err = ParseIDList("", "items")
	require.Error(t, err)
}

func TestParseQueryUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/products?shop_id="+id.String()+"&category_id=bad", nil)

	got, err := ParseQueryUUID(req, "shop_id")
	require.NoError(t, err)
	assert.Equal(t, id, *got)

	_, err = ParseQueryUUID(req, "category_id")
	assert.Error(t, err)

	missing, err := ParseQueryUUID(req, "other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestBearerToken(t *testing.T) {
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	assert.Equal(t, "xyz", tok)

	for _, raw := range []string{"", "Token abc", "Bearer ", "abc"} {
		_, err := BearerToken(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}

func TestSanitizeHelpers(t *testing.T) {
	assert.Equal(t, "héllo", SanitizeString("  héllo world ", 5))
	assert.Equal(t, "a@b.io", NormalizeEmail("  A@B.io "))
}
