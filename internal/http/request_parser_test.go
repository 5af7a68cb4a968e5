package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func decodeExpense(t *testing.T, body string) (expenseRequest, error) {
	t.Helper()
	var req expenseRequest
	r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	err := decodeJSON(httptest.NewRecorder(), r, &req)
	return req, err
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"amount":1}`, ""},
		{"empty", ``, "request body required"},
		{"unknown field", `{"owner":"x"}`, `unknown field "owner"`},
		{"malformed", `{"amount":`, "invalid JSON body"},
		{"trailing data", `{"amount":1}{"amount":2}`, "invalid JSON body"},
		{"too large", `{"description":"` + strings.Repeat("a", maxBodyBytes) + `"}`, "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeExpense(t, tt.body)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
			assert.Equal(t, tt.wantErr, core.PublicMessage(err))
		})
	}
}

func TestExpenseRequestToInput(t *testing.T) {
	req, err := decodeExpense(t, `{"category":" 6f1c2a4e-8a7b-4a53-9a55-0f1f0f0f0f0f ","amount":"12.30","date":"2025-03-04","description":" lunch\u0007 "}`)
	require.NoError(t, err)

	in, err := req.toInput()
	require.NoError(t, err)

	cat, ok := in.CategoryID.Get()
	assert.True(t, ok)
	assert.Equal(t, "6f1c2a4e-8a7b-4a53-9a55-0f1f0f0f0f0f", cat)
	amount, ok := in.Amount.Get()
	assert.True(t, ok)
	assert.True(t, amount.Equal(decimal.RequireFromString("12.3")))
	date, ok := in.Date.Get()
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), date)
	assert.Equal(t, "lunch", in.Description.Value)
}

func TestExpenseRequestPartial(t *testing.T) {
	req, err := decodeExpense(t, `{"amount":0}`)
	require.NoError(t, err)
	in, err := req.toInput()
	require.NoError(t, err)

	amount, ok := in.Amount.Get()
	assert.True(t, ok, "zero amount must count as present")
	assert.True(t, amount.IsZero())
	assert.False(t, in.CategoryID.Set)
	assert.False(t, in.Date.Set)
	assert.False(t, in.Description.Set)
}

func TestExpenseRequestEmptyDateIsAbsent(t *testing.T) {
	req, err := decodeExpense(t, `{"date":""}`)
	require.NoError(t, err)
	in, err := req.toInput()
	require.NoError(t, err)
	assert.False(t, in.Date.Set)
}

func TestExpenseRequestBlankCategoryRejected(t *testing.T) {
	for _, body := range []string{`{"category":""}`, `{"category":"   ","amount":1}`} {
		req, err := decodeExpense(t, body)
		require.NoError(t, err)
		_, err = req.toInput()
		require.Error(t, err, body)
		assert.Equal(t, core.KindValidation, core.KindOf(err))
		assert.Equal(t, "invalid category", core.PublicMessage(err))
	}

	req, err := decodeExpense(t, `{"amount":1}`)
	require.NoError(t, err)
	in, err := req.toInput()
	require.NoError(t, err)
	assert.False(t, in.CategoryID.Set, "omitted category stays absent")
}

func TestExpenseRequestAmountBounds(t *testing.T) {
	req, err := decodeExpense(t, `{"amount":1e-3000000}`)
	require.NoError(t, err)
	in, err := req.toInput()
	require.NoError(t, err)
	err = in.Check(false)
	assert.Equal(t, "invalid amount", core.PublicMessage(err))
}

func TestExpenseRequestRejects(t *testing.T) {
	for _, body := range []string{`{"date":null}`, `{"date":"03/04/2025"}`} {
		req, err := decodeExpense(t, body)
		require.NoError(t, err)
		_, err = req.toInput()
		assert.Equal(t, core.KindValidation, core.KindOf(err), body)
	}

	_, err := decodeExpense(t, `{"amount":"ten"}`)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(r))

	r.Header.Set("Authorization", "bearer  abc.def ")
	assert.Equal(t, "abc.def", bearerToken(r))
}

func TestTargetUser(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/expenses?userId=%20abc%20", nil)
	assert.Equal(t, "abc", targetUser(r))
}
