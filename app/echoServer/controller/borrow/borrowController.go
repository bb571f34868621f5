package borrow

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/omaraymanatia/settle-library-management-system/model"
	bs "github.com/omaraymanatia/settle-library-management-system/service/borrow"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc bs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/borrows
func (h *Controller) Create(c echo.Context) error {
	var req CreateBorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"message": "validation error",
			"errors":  err.Error(),
		})
	}
	uid, _ := c.Get("user_id").(int64)

	out, err := h.Svc.Create(c.Request().Context(), uid, req.BookID, req.ReservationID, req.DueDate)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		case bs.ErrReservationNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "reservation not found"})
		case bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrBookUnavailable, bs.ErrDuplicateBorrow,
			bs.ErrReservationMismatch, bs.ErrReservationState:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		default:
			h.Log.Error("borrow create", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"borrow":     out.Borrow,
		"payment_id": out.PaymentID,
	})
}

// POST /v1/borrows/:id/decide  (admin)
func (h *Controller) Decide(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	var req DecideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}

	b, err := h.Svc.Decide(c.Request().Context(), id, req.Approve)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "borrow not found"})
		case bs.ErrNotPending, bs.ErrPaymentIncomplete, bs.ErrBookUnavailable,
			bs.ErrReservationState:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": err.Error()})
		default:
			h.Log.Error("borrow decide", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, b)
}

// POST /v1/borrows/:id/return
func (h *Controller) RequestReturn(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}
	uid, _ := c.Get("user_id").(int64)

	b, err := h.Svc.RequestReturn(c.Request().Context(), id, uid)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "borrow not found"})
		case bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrNotBorrowed:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "borrow not active"})
		default:
			h.Log.Error("borrow return request", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, b)
}

// POST /v1/borrows/:id/complete-return  (admin)
func (h *Controller) CompleteReturn(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	b, err := h.Svc.CompleteReturn(c.Request().Context(), id)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "borrow not found"})
		case bs.ErrNotReturnPending:
			return c.JSON(http.StatusBadRequest, echo.Map{"message": "return not pending"})
		default:
			h.Log.Error("borrow complete return", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, b)
}

// GET /v1/borrows/my
func (h *Controller) My(c echo.Context) error {
	uid, _ := c.Get("user_id").(int64)
	rows, err := h.Svc.MyBorrows(c.Request().Context(), uid)
	if err != nil {
		h.Log.Error("borrow list", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrows?status=PENDING_APPROVAL  (admin)
func (h *Controller) ListByStatus(c echo.Context) error {
	status := model.BorrowStatus(c.QueryParam("status"))
	if status == "" {
		status = model.BorrowPendingApproval
	}
	rows, err := h.Svc.ListByStatus(c.Request().Context(), status)
	if err != nil {
		h.Log.Error("borrow list by status", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrows/statistics  (admin)
func (h *Controller) Statistics(c echo.Context) error {
	st, err := h.Svc.Statistics(c.Request().Context())
	if err != nil {
		h.Log.Error("borrow statistics", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, st)
}

// POST /v1/borrows/process-overdue  (admin)
func (h *Controller) ProcessOverdue(c echo.Context) error {
	results, err := h.Svc.ProcessOverdue(c.Request().Context())
	if err != nil {
		h.Log.Error("overdue sweep", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"processed": len(results), "results": results})
}
