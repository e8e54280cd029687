package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/linkguard/internal/models"
	"github.com/emadnahed/linkguard/internal/security"
	"github.com/emadnahed/linkguard/internal/services"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// MockURLService is a mock implementation of services.URLService.
type MockURLService struct {
	mock.Mock
}

func (m *MockURLService) Shorten(ctx context.Context, rawURL string) (*services.ShortenResult, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ShortenResult), args.Error(1)
}

func (m *MockURLService) Stats(ctx context.Context, code string) (*models.Mapping, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mapping), args.Error(1)
}

// serveStats routes through a mux so PathValue is populated.
func serveStats(h *URLHandler, path string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats/{code}", h.Stats)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestURLHandler_Shorten(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockURLService)
		expectedStatus int
		expectedCode   string
		checkResponse  func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name: "valid request",
			body: `{"url":"https://example.com/a"}`,
			setupMock: func(m *MockURLService) {
				m.On("Shorten", mock.Anything, "https://example.com/a").Return(&services.ShortenResult{
					ShortCode:   "aB3xY9",
					ShortURL:    "http://localhost:8080/aB3xY9",
					OriginalURL: "https://example.com/a",
					CreatedAt:   created,
				}, nil)
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp ShortenResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, "aB3xY9", resp.ShortCode)
				assert.Equal(t, "http://localhost:8080/aB3xY9", resp.ShortURL)
				assert.Equal(t, "https://example.com/a", resp.OriginalURL)
				assert.Equal(t, "2026-03-01T12:30:00Z", resp.CreatedAt)
			},
		},
		{
			name:           "malformed json",
			body:           `{"url":`,
			setupMock:      func(m *MockURLService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_REQUEST",
		},
		{
			name: "invalid target",
			body: `{"url":"ftp://example.com"}`,
			setupMock: func(m *MockURLService) {
				m.On("Shorten", mock.Anything, "ftp://example.com").Return(nil, security.ErrInvalidScheme)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_URL",
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), "http or https")
			},
		},
		{
			name: "private address",
			body: `{"url":"http://10.0.0.1/"}`,
			setupMock: func(m *MockURLService) {
				m.On("Shorten", mock.Anything, "http://10.0.0.1/").Return(nil, security.ErrPrivateIP)
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "INVALID_URL",
		},
		{
			name: "allocation exhausted",
			body: `{"url":"https://example.com"}`,
			setupMock: func(m *MockURLService) {
				m.On("Shorten", mock.Anything, "https://example.com").Return(nil, models.ErrAllocationExhausted)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "ALLOCATION_EXHAUSTED",
		},
		{
			name: "store unavailable",
			body: `{"url":"https://example.com"}`,
			setupMock: func(m *MockURLService) {
				m.On("Shorten", mock.Anything, "https://example.com").
					Return(nil, fmt.Errorf("create: %w: %w", models.ErrStoreUnavailable, errors.New("dial tcp")))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "STORE_UNAVAILABLE",
			checkResponse: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.NotContains(t, rec.Body.String(), "dial tcp")
			},
		},
		{
			name: "unexpected error",
			body: `{"url":"https://example.com"}`,
			setupMock: func(m *MockURLService) {
				m.On("Shorten", mock.Anything, "https://example.com").Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockURLService)
			tt.setupMock(svc)
			handler := NewURLHandler(svc, logger.Nop())

			req := httptest.NewRequest(http.MethodPost, "/shorten", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.Shorten(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.expectedCode != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedCode, resp.Code)
				assert.NotEmpty(t, resp.Error)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, rec)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestURLHandler_Shorten_BodyTooLarge(t *testing.T) {
	svc := new(MockURLService)
	handler := NewURLHandler(svc, logger.Nop())

	body := `{"url":"https://example.com/` + strings.Repeat("a", maxShortenBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Shorten(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Shorten", mock.Anything, mock.Anything)
}

func TestURLHandler_Stats(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		svc := new(MockURLService)
		svc.On("Stats", mock.Anything, "aB3xY9").Return(&models.Mapping{
			Code:        "aB3xY9",
			Target:      "https://example.com/a",
			CreatedAt:   created,
			AccessCount: 7,
		}, nil)

		rec := serveStats(NewURLHandler(svc, logger.Nop()), "/stats/aB3xY9")

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp StatsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, StatsResponse{
			ShortCode:   "aB3xY9",
			OriginalURL: "https://example.com/a",
			CreatedAt:   "2026-03-01T12:30:00Z",
			AccessCount: 7,
		}, resp)
		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockURLService)
		svc.On("Stats", mock.Anything, "missing").Return(nil, models.ErrNotFound)

		rec := serveStats(NewURLHandler(svc, logger.Nop()), "/stats/missing")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "NOT_FOUND", resp.Code)
	})

	t.Run("invalid code is not found", func(t *testing.T) {
		svc := new(MockURLService)
		svc.On("Stats", mock.Anything, "bad-code").Return(nil, services.ValidateCode("bad-code"))

		rec := serveStats(NewURLHandler(svc, logger.Nop()), "/stats/bad-code")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("store unavailable", func(t *testing.T) {
		svc := new(MockURLService)
		svc.On("Stats", mock.Anything, "aB3xY9").Return(nil, models.ErrStoreUnavailable)

		rec := serveStats(NewURLHandler(svc, logger.Nop()), "/stats/aB3xY9")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMapErrorToResponse(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{security.ErrEmptyURL, http.StatusBadRequest, "INVALID_URL"},
		{fmt.Errorf("wrapped: %w", security.ErrBlockedHost), http.StatusBadRequest, "INVALID_URL"},
		{models.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{models.ErrAllocationExhausted, http.StatusInternalServerError, "ALLOCATION_EXHAUSTED"},
		{models.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{context.Canceled, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
		{errors.New("other"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, body := mapErrorToResponse(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
		})
	}
}
