package checkin

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/sharaf-deen/atom-membership/internal/auth"
	"github.com/sharaf-deen/atom-membership/internal/domain"
	"github.com/sharaf-deen/atom-membership/internal/http/middlewarectx"
	"github.com/sharaf-deen/atom-membership/internal/models"
)

// MockService реализует интерфейс checkin.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) CheckIn(ctx context.Context, rawCode, scannedBy string, scanTime time.Time) (*models.CheckInResult, error) {
	args := m.Called(ctx, rawCode, scannedBy, scanTime)
	if res := args.Get(0); res != nil {
		return res.(*models.CheckInResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newRequest(body string, principal *auth.Principal) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/checkin", strings.NewReader(body))
	if principal != nil {
		ctx := context.WithValue(req.Context(), middlewarectx.PrincipalKey, principal)
		req = req.WithContext(ctx)
	}
	return req
}

func TestCheckInHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	reception := &auth.Principal{UID: "staff-1", Role: auth.RoleReception}

	tests := []struct {
		name           string
		body           string
		principal      *auth.Principal
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:      "successful check-in",
			body:      `{"code":"atom:b1a4c8a0-1f2e-4d7b-9c3a-5e6f7a8b9c0d"}`,
			principal: reception,
			setupMock: func(m *MockService) {
				left := 3
				result := &models.CheckInResult{
					MemberUID:        "b1a4c8a0-1f2e-4d7b-9c3a-5e6f7a8b9c0d",
					RemainingClasses: &left,
				}
				m.On("CheckIn", mock.Anything, "atom:b1a4c8a0-1f2e-4d7b-9c3a-5e6f7a8b9c0d", "staff-1", mock.Anything).
					Return(result, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"remaining_classes":3`,
		},
		{
			name:           "no session",
			body:           `{"code":"whatever"}`,
			principal:      nil,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"NOT_AUTHENTICATED"`,
		},
		{
			name:           "member role is forbidden",
			body:           `{"code":"whatever"}`,
			principal:      &auth.Principal{UID: "uid-1", Role: auth.RoleMember},
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `"error":"FORBIDDEN"`,
		},
		{
			name:           "malformed json",
			body:           `{`,
			principal:      reception,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"INVALID_INPUT"`,
		},
		{
			name:      "no active subscription",
			body:      `{"code":"atom:b1a4c8a0-1f2e-4d7b-9c3a-5e6f7a8b9c0d"}`,
			principal: reception,
			setupMock: func(m *MockService) {
				m.On("CheckIn", mock.Anything, mock.Anything, "staff-1", mock.Anything).
					Return(nil, domain.ErrNoSubscription)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"NO_SUBSCRIPTION"`,
		},
		{
			name:      "terminal subscription conflicts",
			body:      `{"code":"atom:b1a4c8a0-1f2e-4d7b-9c3a-5e6f7a8b9c0d"}`,
			principal: reception,
			setupMock: func(m *MockService) {
				m.On("CheckIn", mock.Anything, mock.Anything, "staff-1", mock.Anything).
					Return(nil, domain.WithDetail(domain.ErrSubscriptionNotActive, "subscription is canceled"))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"SUBSCRIPTION_NOT_ACTIVE"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)
			req := newRequest(tt.body, tt.principal)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
