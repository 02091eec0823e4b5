package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/maramotto/librored/loan/internal/errs"
	"github.com/maramotto/librored/loan/internal/model"
	"github.com/maramotto/librored/pkg/kafka"
	"github.com/maramotto/librored/pkg/validate"
)

type Handler struct {
	loanSvc  LoanService
	enqueuer Enqueuer
	log      *zap.Logger
}

func New(loanSvc LoanService, enqueuer Enqueuer, log *zap.Logger) *Handler {
	return &Handler{
		loanSvc:  loanSvc,
		enqueuer: enqueuer,
		log:      log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log)),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.GET("/loans", h.ListLoans)
	api.POST("/loans", h.CreateLoan)
	api.GET("/loans/:id", h.GetLoan)
	api.PUT("/loans/:id", h.UpdateLoan)
	api.DELETE("/loans/:id", h.DeleteLoan)
	api.GET("/loans/availability/book", h.BookAvailability)
	api.GET("/loans/availability/borrower", h.BorrowerAvailability)
	api.GET("/books/available", h.ListAvailableBooks)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) CreateLoan(c echo.Context) error {
	var req model.CreateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	loan, err := h.loanSvc.CreateLoan(ctx, req)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	h.enqueue(newLoanEvent(kafka.EventLoanCreated, loan))

	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) UpdateLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.UpdateLoanRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	loan, err := h.loanSvc.UpdateLoan(ctx, id, req)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	h.enqueue(newLoanEvent(kafka.EventLoanUpdated, loan))

	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) DeleteLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	loan, err := h.loanSvc.GetLoan(ctx, id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	if err := h.loanSvc.DeleteLoan(ctx, id); err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	h.enqueue(newLoanEvent(kafka.EventLoanDeleted, loan))

	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetLoan(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	loan, err := h.loanSvc.GetLoan(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, loan)
}

func (h *Handler) ListLoans(c echo.Context) error {
	var filter model.ListLoansFilter
	var err error
	if filter.LenderID, err = optInt64Param(c, "lenderId"); err != nil {
		return err
	}
	if filter.BorrowerID, err = optInt64Param(c, "borrowerId"); err != nil {
		return err
	}
	if filter.BookID, err = optInt64Param(c, "bookId"); err != nil {
		return err
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.Size, _ = strconv.Atoi(c.QueryParam("size"))

	loans, err := h.loanSvc.ListLoans(c.Request().Context(), filter)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) BookAvailability(c echo.Context) error {
	bookID, err := requiredInt64Param(c, "bookId")
	if err != nil {
		return err
	}
	iv, excludeLoanID, err := availabilityParams(c)
	if err != nil {
		return err
	}
	free, err := h.loanSvc.IsBookAvailable(c.Request().Context(), bookID, iv, excludeLoanID)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"available": free})
}

func (h *Handler) BorrowerAvailability(c echo.Context) error {
	borrowerID, err := requiredInt64Param(c, "borrowerId")
	if err != nil {
		return err
	}
	lenderID, err := requiredInt64Param(c, "lenderId")
	if err != nil {
		return err
	}
	iv, excludeLoanID, err := availabilityParams(c)
	if err != nil {
		return err
	}
	free, err := h.loanSvc.IsBorrowerPairAvailable(c.Request().Context(), borrowerID, lenderID, iv, excludeLoanID)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"available": free})
}

func (h *Handler) ListAvailableBooks(c echo.Context) error {
	ownerID, err := requiredInt64Param(c, "ownerId")
	if err != nil {
		return err
	}
	books, err := h.loanSvc.ListAvailableBooks(c.Request().Context(), ownerID)
	if err != nil {
		return echo.NewHTTPError(httpStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, books)
}

// enqueue publishes best-effort: a mutation that committed is reported
// even when the broker is down.
func (h *Handler) enqueue(ev kafka.EventLoan) {
	if err := h.enqueuer.Enqueue(kafka.LoanTopic, ev); err != nil {
		h.log.Error("enqueue loan event", zap.String("eventType", string(ev.EventType)), zap.Error(err))
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid loan id")
	}
	return id, nil
}

func requiredInt64Param(c echo.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.QueryParam(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

func optInt64Param(c echo.Context, name string) (*int64, error) {
	s := c.QueryParam(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &v, nil
}

func availabilityParams(c echo.Context) (model.Interval, *int64, error) {
	start, err := time.Parse(time.DateOnly, c.QueryParam("startDate"))
	if err != nil {
		return model.Interval{}, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid startDate")
	}
	var end *time.Time
	if s := c.QueryParam("endDate"); s != "" {
		e, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return model.Interval{}, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid endDate")
		}
		end = &e
	}
	excludeLoanID, err := optInt64Param(c, "excludeLoanId")
	if err != nil {
		return model.Interval{}, nil, err
	}
	return model.NewInterval(start, end), excludeLoanID, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrLoanNotFound),
		errors.Is(err, errs.ErrBookNotFound),
		errors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrBookConflict),
		errors.Is(err, errs.ErrBorrowerConflict),
		errors.Is(err, errs.ErrLenderImmutable),
		errors.Is(err, errs.ErrIllegalReactivation):
		return http.StatusConflict
	case errors.Is(err, errs.ErrIdentityConflict),
		errors.Is(err, errs.ErrInvalidStartDate),
		errors.Is(err, errs.ErrInvalidEndDate),
		errors.Is(err, errs.ErrEndBeforeStart),
		errors.Is(err, errs.ErrOwnershipViolation),
		errors.Is(err, errs.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
