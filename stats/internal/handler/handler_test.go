package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maramotto/librored/stats/internal/handler"
	mock_handler "github.com/maramotto/librored/stats/internal/handler/mocks"
	"github.com/maramotto/librored/stats/internal/model"
)

func TestHandler_GetStats(t *testing.T) {
	t.Parallel()

	type response struct {
		expectedCode int
		expectedBody string
	}
	type mockBehavior func(svc *mock_handler.MockStatsService)

	updated := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	var tests = []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(svc *mock_handler.MockStatsService) {
				svc.EXPECT().GetStats(gomock.Any()).Return(model.StatsInfo{
					Data: []model.Stats{
						{UserID: 1, LastUpdated: updated, CountLent: 3, CountBorrow: 0},
						{UserID: 2, LastUpdated: updated, CountLent: 0, CountBorrow: 3},
					},
				}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				expectedBody: `{"data":[{"userId":1,"lastUpdated":"2026-08-01T12:00:00Z","cntLent":3,"cntBorrowed":0},{"userId":2,"lastUpdated":"2026-08-01T12:00:00Z","cntLent":0,"cntBorrowed":3}]}`,
			},
		},
		{
			name: "repository failure",
			mockBehavior: func(svc *mock_handler.MockStatsService) {
				svc.EXPECT().GetStats(gomock.Any()).Return(model.StatsInfo{}, errors.New("db down"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				expectedBody: `{"message":"db down"}`,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			svc := mock_handler.NewMockStatsService(c)
			tt.mockBehavior(svc)

			log := zap.NewExample().Named("test")
			h := handler.New(svc, log)

			e := echo.New()
			e.GET("/api/v1/stats", h.GetStats)

			r := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Equal(t, tt.response.expectedBody, strings.Trim(w.Body.String(), "\n"))
		})
	}
}
