package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "bcbradar/internal/errors"
	"bcbradar/internal/shared/testutil"
)

type seriesQuery struct {
	Codes string `json:"codes" validate:"required,seriescodes"`
	Start string `json:"start" validate:"omitempty,isodate"`
	Mode  string `json:"mode" validate:"omitempty,oneof=pf pj all"`
	Last  int    `json:"last" validate:"omitempty,gte=1,lte=600"`
}

func TestValidationMiddleware_ValidateStruct(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	handler := apierrors.NewErrorHandler(logger, false)
	vm := NewValidationMiddleware(logger, handler)

	tests := []struct {
		name      string
		input     seriesQuery
		wantError bool
		wantField string
	}{
		{
			name:      "valid query",
			input:     seriesQuery{Codes: "433,192", Start: "2024-01-01", Mode: "pf", Last: 48},
			wantError: false,
		},
		{
			name:      "missing codes",
			input:     seriesQuery{Start: "2024-01-01"},
			wantError: true,
			wantField: "codes",
		},
		{
			name:      "non-numeric codes",
			input:     seriesQuery{Codes: "433,abc"},
			wantError: true,
			wantField: "codes",
		},
		{
			name:      "negative code",
			input:     seriesQuery{Codes: "-5"},
			wantError: true,
			wantField: "codes",
		},
		{
			name:      "malformed date",
			input:     seriesQuery{Codes: "433", Start: "01/02/2024"},
			wantError: true,
			wantField: "start",
		},
		{
			name:      "impossible date",
			input:     seriesQuery{Codes: "433", Start: "2024-02-30"},
			wantError: true,
			wantField: "start",
		},
		{
			name:      "unknown mode",
			input:     seriesQuery{Codes: "433", Mode: "corporate"},
			wantError: true,
			wantField: "mode",
		},
		{
			name:      "last out of range",
			input:     seriesQuery{Codes: "433", Last: 9999},
			wantError: true,
			wantField: "last",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vm.ValidateStruct(&tt.input)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			apiErr, ok := err.(*apierrors.APIError)
			require.True(t, ok, "expected *APIError, got %T", err)
			assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok, "expected ValidationErrors details, got %T", apiErr.Details)

			found := false
			for _, fe := range details.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			assert.True(t, found, "expected a validation error on field %q, got %v", tt.wantField, details.Errors)
		})
	}
}

func TestQueryParamValidator_ValidateInt(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	tests := []struct {
		name      string
		query     string
		wantValue int
		wantOK    bool
	}{
		{name: "valid value", query: "last=24", wantValue: 24, wantOK: true},
		{name: "missing uses default", query: "", wantValue: 48, wantOK: true},
		{name: "not an integer", query: "last=many", wantOK: false},
		{name: "below minimum", query: "last=0", wantOK: false},
		{name: "above maximum", query: "last=601", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/delinquency/series?"+tt.query, nil)
			rec := httptest.NewRecorder()

			value, ok := qv.ValidateInt(rec, req, "last", 1, 600, 48)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantValue, value)
			} else {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Contains(t, rec.Body.String(), "last")
			}
		})
	}
}

func TestQueryParamValidator_ValidateEnum(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	allowed := []string{"pf", "pj", "all"}

	t.Run("valid value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/delinquency/states?mode=pj", nil)
		value, ok := qv.ValidateEnum(httptest.NewRecorder(), req, "mode", allowed, "all")
		assert.True(t, ok)
		assert.Equal(t, "pj", value)
	})

	t.Run("missing uses default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/delinquency/states", nil)
		value, ok := qv.ValidateEnum(httptest.NewRecorder(), req, "mode", allowed, "all")
		assert.True(t, ok)
		assert.Equal(t, "all", value)
	})

	t.Run("unknown value rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/delinquency/states?mode=corporate", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateEnum(rec, req, "mode", allowed, "all")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "pf, pj, all")
	})
}

func TestQueryParamValidator_ValidateDate(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	fallback := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/series?start=2024-06-15", nil)
		value, ok := qv.ValidateDate(httptest.NewRecorder(), req, "start", fallback)
		require.True(t, ok)
		assert.Equal(t, 2024, value.Year())
		assert.Equal(t, time.June, value.Month())
		assert.Equal(t, 15, value.Day())
	})

	t.Run("missing uses default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/series", nil)
		value, ok := qv.ValidateDate(httptest.NewRecorder(), req, "start", fallback)
		require.True(t, ok)
		assert.Equal(t, fallback, value)
	})

	t.Run("malformed date rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/series?start=15-06-2024", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateDate(rec, req, "start", fallback)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
	})
}

func TestQueryParamValidator_ValidateRequiredDate(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("present date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/compare?start_a=2024-01-31", nil)
		value, ok := qv.ValidateRequiredDate(httptest.NewRecorder(), req, "start_a")
		require.True(t, ok)
		assert.Equal(t, 31, value.Day())
	})

	t.Run("missing rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/compare", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateRequiredDate(rec, req, "start_a")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "start_a is required")
	})

	t.Run("malformed rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/payments/compare?start_a=31/01/2024", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateRequiredDate(rec, req, "start_a")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQueryParamValidator_ValidateRequiredString(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	qv := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("present value", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rates/snapshot?modality=Cheque%20especial", nil)
		value, ok := qv.ValidateRequiredString(httptest.NewRecorder(), req, "modality")
		require.True(t, ok)
		assert.Equal(t, "Cheque especial", value)
	})

	t.Run("missing rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rates/snapshot", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateRequiredString(rec, req, "modality")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "modality is required")
	})

	t.Run("blank rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/rates/snapshot?modality=%20%20", nil)
		rec := httptest.NewRecorder()
		_, ok := qv.ValidateRequiredString(rec, req, "modality")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
