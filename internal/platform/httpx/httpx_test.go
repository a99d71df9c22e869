package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{NotFound("invoice not found"), http.StatusNotFound, "invoice not found"},
		{fmt.Errorf("wrap: %w", Invalid("amount must be positive")), http.StatusBadRequest, "wrap: amount must be positive"},
		{Conflict("locked"), http.StatusConflict, "locked"},
		{Duplicate("replayed"), http.StatusConflict, "replayed"},
		{Forbidden("other account"), http.StatusForbidden, "other account"},
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "An unexpected error occurred"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)

		require.Equal(t, tc.status, rr.Code)
		require.Equal(t, tc.status, StatusOf(tc.err))
		var body ErrorBody
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, tc.message, body.Message)
		require.Equal(t, tc.status, body.Status)
	}
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Amount decimal.Decimal `json:"amount"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount": 12.345}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "12.345", target.Amount.String())

	req = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	require.NoError(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":`))
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrValidation)
}

func TestParseUUID(t *testing.T) {
	_, err := ParseUUID("nope", "invoice id")
	require.ErrorIs(t, err, ErrValidation)
	require.EqualError(t, err, "invalid invoice id")

	id, err := OptionalUUID("", "jobId")
	require.NoError(t, err)
	require.False(t, id.Valid)

	id, err = OptionalUUID("0b9f4f2e-3f0e-4a8e-9d39-3c1f7f0e2a11", "jobId")
	require.NoError(t, err)
	require.True(t, id.Valid)
}

func TestPageParams(t *testing.T) {
	page, perPage := PageParams(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)

	page, perPage = PageParams(httptest.NewRequest(http.MethodGet, "/?page=3&perPage=500", nil))
	require.Equal(t, 3, page)
	require.Equal(t, 200, perPage)
}

func TestValidateDecimalsAndFieldNames(t *testing.T) {
	type request struct {
		Amount  *decimal.Decimal `json:"amount" validate:"required,gt=0"`
		TaxRate *decimal.Decimal `json:"taxRate,omitempty" validate:"omitempty,gte=0,lte=1"`
		Email   string           `json:"recipientEmail" validate:"omitempty,email"`
	}
	d := func(s string) *decimal.Decimal {
		v := decimal.RequireFromString(s)
		return &v
	}

	require.NoError(t, Validate(request{Amount: d("0.01")}))

	err := Validate(request{})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "amount is required")

	err = Validate(request{Amount: d("0")})
	require.Contains(t, err.Error(), "amount must satisfy gt=0")

	err = Validate(request{Amount: d("5"), TaxRate: d("1.2"), Email: "not-an-email"})
	require.Contains(t, err.Error(), "taxRate must satisfy lte=1")
	require.Contains(t, err.Error(), "recipientEmail must be a valid email")
}
