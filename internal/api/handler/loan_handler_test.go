package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"lending-engine/internal/api/handler/dto"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/pkg/apperrors"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))

type MockLoanService struct {
	mock.Mock
}

func (_m *MockLoanService) CreateLoan(ctx context.Context, userID, amount int64, totalDays int) (*loan.Loan, error) {
	ret := _m.Called(ctx, userID, amount, totalDays)
	var r0 *loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanService) ApproveLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	ret := _m.Called(ctx, loanID)
	var r0 *loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanService) RejectLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	ret := _m.Called(ctx, loanID)
	var r0 *loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	ret := _m.Called(ctx, loanID)
	var r0 *loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*loan.Loan)
	}
	return r0, ret.Error(1)
}

func (_m *MockLoanService) ListLoansByUser(ctx context.Context, userID int64) ([]*loan.Loan, error) {
	ret := _m.Called(ctx, userID)
	var r0 []*loan.Loan
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*loan.Loan)
	}
	return r0, ret.Error(1)
}

func newLoanRouter(service loan.LoanService) *chi.Mux {
	h := NewLoanHandler(service, testLogger)
	r := chi.NewRouter()
	r.Post("/loans", h.CreateLoan)
	r.Get("/loans/{loanID}", h.GetLoan)
	r.Post("/loans/{loanID}/approve", h.ApproveLoan)
	r.Post("/loans/{loanID}/reject", h.RejectLoan)
	return r
}

func TestCreateLoanHandler(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	created := &loan.Loan{ID: 1, UserID: 7, Amount: 1000, TotalDays: 10, InterestRate: 0.20,
		Status: loan.StatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	mockService.On("CreateLoan", mock.Anything, int64(7), int64(1000), 10).Return(created, nil)

	body, _ := json.Marshal(dto.CreateLoanRequest{UserID: 7, Amount: 1000, TotalDays: 10})
	req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp dto.LoanResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, "PENDING", resp.Status)
	mockService.AssertExpectations(t)
}

func TestCreateLoanHandlerRejectsOutOfRangeAmount(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	body, _ := json.Marshal(dto.CreateLoanRequest{UserID: 7, Amount: 50, TotalDays: 10})
	req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockService.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateLoanHandlerRejectsMalformedBody(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	req := httptest.NewRequest(http.MethodPost, "/loans", bytes.NewReader([]byte(`{"userId": "seven"}`)))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApproveLoanHandler(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	start := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	approved := &loan.Loan{ID: 1, UserID: 7, Status: loan.StatusApproved, StartDate: &start}
	mockService.On("ApproveLoan", mock.Anything, int64(1)).Return(approved, nil)

	req := httptest.NewRequest(http.MethodPost, "/loans/1/approve", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp dto.LoanResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "APPROVED", resp.Status)
	assert.Equal(t, "2025-06-02", *resp.StartDate)
}

func TestApproveLoanHandlerConflict(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	mockService.On("ApproveLoan", mock.Anything, int64(1)).Return(nil, apperrors.ErrLoanNotApprovable)

	req := httptest.NewRequest(http.MethodPost, "/loans/1/approve", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetLoanHandlerNotFound(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	mockService.On("GetLoan", mock.Anything, int64(42)).Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/loans/42", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp dto.ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Resource not found.", resp.Error.Message)
}

func TestGetLoanHandlerBadID(t *testing.T) {
	mockService := new(MockLoanService)
	router := newLoanRouter(mockService)

	req := httptest.NewRequest(http.MethodGet, "/loans/not-a-number", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	mockService.AssertNotCalled(t, "GetLoan", mock.Anything, mock.Anything)
}
