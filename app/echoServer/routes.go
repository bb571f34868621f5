package echoServer

import (
	"net/http"

	authctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/auth"
	bookctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/book"
	borrowctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/borrow"
	paymentctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/payment"
	resctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/reservation"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

type C struct {
	Auth        *authctrl.Controller
	Book        *bookctrl.Controller
	Reservation *resctrl.Controller
	Borrow      *borrowctrl.Controller
	Payment     *paymentctrl.Controller
	JWTSecret   string
}

func Register(e *echo.Echo, c C) {
	// Public
	pub := e.Group("/v1")
	pub.POST("/users/register", c.Auth.Register)
	pub.POST("/users/login", c.Auth.Login)

	// Auth
	auth := e.Group("/v1")
	auth.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(c.JWTSecret),

		NewClaimsFunc: func(c echo.Context) jwt.Claims { return jwt.MapClaims{} },
		TokenLookup:   "header:Authorization",
	}))
	// user_id + role extraction from verified claims
	auth.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			tokenObj := ctx.Get("user")
			claims, ok := tokenObj.(jwt.MapClaims)
			if !ok {
				if tok, tokOK := tokenObj.(*jwt.Token); tokOK {
					claims, ok = tok.Claims.(jwt.MapClaims)
				}
			}
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}

			sub, ok := claims["sub"].(float64)
			if !ok {
				return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
			}
			ctx.Set("user_id", int64(sub))
			if role, ok := claims["role"].(string); ok {
				ctx.Set("role", role)
			}
			return next(ctx)
		}
	})

	// Books
	auth.GET("/books", c.Book.List)
	auth.GET("/books/:id", c.Book.Detail)
	auth.GET("/books/isbn/:isbn", c.Book.DetailByISBN)

	// Reservations
	auth.POST("/reservations", c.Reservation.Create)
	auth.POST("/reservations/:id/confirm", c.Reservation.ConfirmPayment)
	auth.POST("/reservations/:id/cancel", c.Reservation.Cancel)
	auth.GET("/reservations/my", c.Reservation.My)

	// Borrows
	auth.POST("/borrows", c.Borrow.Create)
	auth.POST("/borrows/:id/return", c.Borrow.RequestReturn)
	auth.GET("/borrows/my", c.Borrow.My)

	// Payments
	auth.POST("/payments/:id/confirm", c.Payment.Confirm)
	auth.GET("/payments/:id", c.Payment.Detail)
	auth.GET("/payments/my", c.Payment.My)

	// Admin
	admin := auth.Group("")
	admin.Use(RequireAdmin())

	admin.POST("/books", c.Book.Create)
	admin.PUT("/books/:id", c.Book.Update)
	admin.DELETE("/books/:id", c.Book.Delete)
	admin.POST("/books/:id/availability", c.Book.AdjustAvailability)
	admin.GET("/books/:id/reservations", c.Reservation.ByBook)

	admin.POST("/reservations/expire-old", c.Reservation.ExpireOld)

	admin.GET("/borrows", c.Borrow.ListByStatus)
	admin.GET("/borrows/statistics", c.Borrow.Statistics)
	admin.POST("/borrows/:id/decide", c.Borrow.Decide)
	admin.POST("/borrows/:id/complete-return", c.Borrow.CompleteReturn)
	admin.POST("/borrows/process-overdue", c.Borrow.ProcessOverdue)

	admin.GET("/payments/pending-count", c.Payment.PendingCount)
}
