package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maramotto/librored/loan/internal/errs"
	"github.com/maramotto/librored/loan/internal/handler"
	mock_handler "github.com/maramotto/librored/loan/internal/handler/mocks"
	"github.com/maramotto/librored/loan/internal/model"
	"github.com/maramotto/librored/pkg/validate"
)

type nopEnqueuer struct{}

func (nopEnqueuer) Enqueue(topic string, v any) error { return nil }

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func datePtr(s string) *time.Time {
	t := date(s)
	return &t
}

func sampleLoan() model.Loan {
	return model.Loan{
		ID:         1,
		BookID:     10,
		LenderID:   1,
		BorrowerID: 2,
		StartDate:  date("2030-05-01"),
		EndDate:    datePtr("2030-05-15"),
		Status:     model.StatusActive,
	}
}

const sampleLoanJSON = `{"id":1,"bookId":10,"lenderId":1,"borrowerId":2,"startDate":"2030-05-01T00:00:00Z","endDate":"2030-05-15T00:00:00Z","status":"Active"}`

func TestHandler_CreateLoan(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(svc *mock_handler.MockLoanService)

	var tests = []struct {
		name         string
		requestBody  string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:        "ok",
			requestBody: `{"bookId":10,"lenderId":1,"borrowerId":2,"startDate":"2030-05-01","endDate":"2030-05-15"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().
					CreateLoan(gomock.Any(), model.CreateLoanRequest{
						BookID:     10,
						LenderID:   1,
						BorrowerID: 2,
						StartDate:  model.Date{Time: date("2030-05-01")},
						EndDate:    &model.Date{Time: date("2030-05-15")},
					}).
					Return(sampleLoan(), nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				expectedBody: sampleLoanJSON,
			},
		},
		{
			name:        "book conflict",
			requestBody: `{"bookId":10,"lenderId":1,"borrowerId":2,"startDate":"2030-05-01"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().
					CreateLoan(gomock.Any(), gomock.Any()).
					Return(model.Loan{}, errs.ErrBookConflict)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"book is already loaned out during the date range"}`,
			},
		},
		{
			name:        "identity conflict",
			requestBody: `{"bookId":10,"lenderId":1,"borrowerId":1,"startDate":"2030-05-01"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().
					CreateLoan(gomock.Any(), gomock.Any()).
					Return(model.Loan{}, errs.ErrIdentityConflict)
			},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"lender and borrower cannot be the same person"}`,
			},
		},
		{
			name:         "missing bookId fails validation",
			requestBody:  `{"lenderId":1,"borrowerId":2,"startDate":"2030-05-01"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'CreateLoanRequest.BookID' Error:Field validation for 'BookID' failed on the 'required' tag"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := mock_handler.NewMockLoanService(c)
			tt.mockBehavior(svc)

			log := zap.NewExample().Named("test")
			h := handler.New(svc, nopEnqueuer{}, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/api/v1/loans", h.CreateLoan)

			r := httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(tt.requestBody))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_GetLoan(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(svc *mock_handler.MockLoanService)

	var tests = []struct {
		name         string
		id           string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			id:   "1",
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().GetLoan(gomock.Any(), int64(1)).Return(sampleLoan(), nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: sampleLoanJSON,
			},
		},
		{
			name: "not found",
			id:   "77",
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().GetLoan(gomock.Any(), int64(77)).Return(model.Loan{}, errs.ErrLoanNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"loan not found"}`,
			},
		},
		{
			name:         "invalid id",
			id:           "abc",
			mockBehavior: func(svc *mock_handler.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid loan id"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := mock_handler.NewMockLoanService(c)
			tt.mockBehavior(svc)

			log := zap.NewExample().Named("test")
			h := handler.New(svc, nopEnqueuer{}, log)

			e := echo.New()
			e.GET("/api/v1/loans/:id", h.GetLoan)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/loans/"+tt.id, nil)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_UpdateLoan(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(svc *mock_handler.MockLoanService)

	completed := sampleLoan()
	completed.Status = model.StatusCompleted
	completedJSON := strings.Replace(sampleLoanJSON, `"Active"`, `"Completed"`, 1)

	var tests = []struct {
		name         string
		requestBody  string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:        "complete",
			requestBody: `{"status":"Completed"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				status := model.StatusCompleted
				svc.EXPECT().
					UpdateLoan(gomock.Any(), int64(1), model.UpdateLoanRequest{Status: &status}).
					Return(completed, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: completedJSON,
			},
		},
		{
			name:        "lender change rejected",
			requestBody: `{"lenderId":9}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().
					UpdateLoan(gomock.Any(), int64(1), gomock.Any()).
					Return(model.Loan{}, errs.ErrLenderImmutable)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"lender cannot be changed"}`,
			},
		},
		{
			name:        "reactivation rejected",
			requestBody: `{"status":"Active"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().
					UpdateLoan(gomock.Any(), int64(1), gomock.Any()).
					Return(model.Loan{}, errs.ErrIllegalReactivation)
			},
			response: response{
				expectedCode: http.StatusConflict,
				expectedBody: `{"message":"completed loan cannot be reactivated"}`,
			},
		},
		{
			name:         "bad status fails validation",
			requestBody:  `{"status":"Returned"}`,
			mockBehavior: func(svc *mock_handler.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"Key: 'UpdateLoanRequest.Status' Error:Field validation for 'Status' failed on the 'oneof' tag"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := mock_handler.NewMockLoanService(c)
			tt.mockBehavior(svc)

			log := zap.NewExample().Named("test")
			h := handler.New(svc, nopEnqueuer{}, log)

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.PUT("/api/v1/loans/:id", h.UpdateLoan)

			r := httptest.NewRequest(http.MethodPut, "/api/v1/loans/1", strings.NewReader(tt.requestBody))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_DeleteLoan(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(svc *mock_handler.MockLoanService)

	var tests = []struct {
		name         string
		id           string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			id:   "1",
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().GetLoan(gomock.Any(), int64(1)).Return(sampleLoan(), nil)
				svc.EXPECT().DeleteLoan(gomock.Any(), int64(1)).Return(nil)
			},
			response: response{
				expectedCode: http.StatusNoContent,
				expectedBody: "",
			},
		},
		{
			name: "not found",
			id:   "77",
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().GetLoan(gomock.Any(), int64(77)).Return(model.Loan{}, errs.ErrLoanNotFound)
			},
			response: response{
				expectedCode: http.StatusNotFound,
				expectedBody: `{"message":"loan not found"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := mock_handler.NewMockLoanService(c)
			tt.mockBehavior(svc)

			log := zap.NewExample().Named("test")
			h := handler.New(svc, nopEnqueuer{}, log)

			e := echo.New()
			e.DELETE("/api/v1/loans/:id", h.DeleteLoan)

			r := httptest.NewRequest(http.MethodDelete, "/api/v1/loans/"+tt.id, nil)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_BookAvailability(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(svc *mock_handler.MockLoanService)

	var tests = []struct {
		name         string
		query        string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name:  "available",
			query: "bookId=10&startDate=2030-05-01&endDate=2030-05-15",
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				svc.EXPECT().
					IsBookAvailable(gomock.Any(), int64(10),
						model.NewInterval(date("2030-05-01"), datePtr("2030-05-15")), nil).
					Return(true, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"available":true}`,
			},
		},
		{
			name:  "open-ended and excluding a loan",
			query: "bookId=10&startDate=2030-05-01&excludeLoanId=5",
			mockBehavior: func(svc *mock_handler.MockLoanService) {
				exclude := int64(5)
				svc.EXPECT().
					IsBookAvailable(gomock.Any(), int64(10),
						model.NewInterval(date("2030-05-01"), nil), &exclude).
					Return(false, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"available":false}`,
			},
		},
		{
			name:         "missing startDate",
			query:        "bookId=10",
			mockBehavior: func(svc *mock_handler.MockLoanService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
				expectedBody: `{"message":"invalid startDate"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := mock_handler.NewMockLoanService(c)
			tt.mockBehavior(svc)

			log := zap.NewExample().Named("test")
			h := handler.New(svc, nopEnqueuer{}, log)

			e := echo.New()
			e.GET("/api/v1/loans/availability/book", h.BookAvailability)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/loans/availability/book?"+tt.query, nil)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}

func TestHandler_BorrowerAvailability(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()
	svc := mock_handler.NewMockLoanService(c)
	svc.EXPECT().
		IsBorrowerPairAvailable(gomock.Any(), int64(2), int64(1),
			model.NewInterval(date("2030-05-01"), nil), nil).
		Return(false, nil)

	log := zap.NewExample().Named("test")
	h := handler.New(svc, nopEnqueuer{}, log)

	e := echo.New()
	e.GET("/api/v1/loans/availability/borrower", h.BorrowerAvailability)

	r := httptest.NewRequest(http.MethodGet,
		"/api/v1/loans/availability/borrower?borrowerId=2&lenderId=1&startDate=2030-05-01", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, `{"available":false}`, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_ListLoans(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()
	svc := mock_handler.NewMockLoanService(c)
	lender := int64(1)
	svc.EXPECT().
		ListLoans(gomock.Any(), model.ListLoansFilter{LenderID: &lender, Page: 1, Size: 20}).
		Return(model.ListLoans{
			Paging: model.Paging{Page: 1, PageSize: 20, TotalElements: 1},
			Items:  []model.Loan{sampleLoan()},
		}, nil)

	log := zap.NewExample().Named("test")
	h := handler.New(svc, nopEnqueuer{}, log)

	e := echo.New()
	e.GET("/api/v1/loans", h.ListLoans)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/loans?lenderId=1&page=1&size=20", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	expected := `{"page":1,"pageSize":20,"totalElements":1,"items":[` + sampleLoanJSON + `]}`
	require.Equal(t, expected, strings.Trim(w.Body.String(), "\n"))
}

func TestHandler_ListAvailableBooks(t *testing.T) {
	t.Parallel()

	c := gomock.NewController(t)
	defer c.Finish()
	svc := mock_handler.NewMockLoanService(c)
	svc.EXPECT().
		ListAvailableBooks(gomock.Any(), int64(1)).
		Return([]model.Book{{ID: 10, Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", OwnerID: 1}}, nil)

	log := zap.NewExample().Named("test")
	h := handler.New(svc, nopEnqueuer{}, log)

	e := echo.New()
	e.GET("/api/v1/books/available", h.ListAvailableBooks)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/books/available?ownerId=1", nil)
	w := httptest.NewRecorder()
	e.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	expected := `[{"id":10,"title":"Dune","author":"Frank Herbert","genre":"Sci-Fi","ownerId":1}]`
	require.Equal(t, expected, strings.Trim(w.Body.String(), "\n"))
}
