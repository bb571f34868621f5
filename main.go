// Package main library management API.
//
// @title           Library Management API
// @version         1.0
// @description     Library backend (catalog, reservations, borrows, payments).
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description  Use:  Bearer <JWT>
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/omaraymanatia/settle-library-management-system/app/echoServer"
	authctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/auth"
	bookctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/book"
	borrowctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/borrow"
	paymentctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/payment"
	resctrl "github.com/omaraymanatia/settle-library-management-system/app/echoServer/controller/reservation"
	"github.com/omaraymanatia/settle-library-management-system/app/echoServer/validation"
	"github.com/omaraymanatia/settle-library-management-system/config"
	authrepo "github.com/omaraymanatia/settle-library-management-system/repository/auth"
	bookrepo "github.com/omaraymanatia/settle-library-management-system/repository/book"
	borrowrepo "github.com/omaraymanatia/settle-library-management-system/repository/borrow"
	paymentrepo "github.com/omaraymanatia/settle-library-management-system/repository/payment"
	reservationrepo "github.com/omaraymanatia/settle-library-management-system/repository/reservation"
	authsvc "github.com/omaraymanatia/settle-library-management-system/service/auth"
	booksvc "github.com/omaraymanatia/settle-library-management-system/service/book"
	borrowsvc "github.com/omaraymanatia/settle-library-management-system/service/borrow"
	paymentsvc "github.com/omaraymanatia/settle-library-management-system/service/payment"
	reservationsvc "github.com/omaraymanatia/settle-library-management-system/service/reservation"
	"github.com/omaraymanatia/settle-library-management-system/util/database"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	// DB
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// repos
	ar := authrepo.New(db.DB)
	br := bookrepo.New(db.DB)
	rr := reservationrepo.New(db.DB)
	brw := borrowrepo.New(db.DB)
	pr := paymentrepo.New(db.DB)

	// services
	as := authsvc.New(ar, cfg.JWTSecret)
	bs := booksvc.New(br)
	rs := reservationsvc.New(db, rr, reservationsvc.Config{
		ExpiryHours:       cfg.ReservationExpiryHours,
		DepositPercentage: cfg.DepositPercentage,
	})
	bws := borrowsvc.New(db, brw, borrowsvc.Config{
		BorrowPeriodDays: cfg.BorrowPeriodDays,
	})
	ps := paymentsvc.New(db, pr)

	// controllers
	v := validator.New()
	authC := &authctrl.Controller{Svc: as, V: v, Log: log}
	bookC := &bookctrl.Controller{Svc: bs, V: v, Log: log}
	resC := &resctrl.Controller{Svc: rs, V: v, Log: log}
	borrowC := &borrowctrl.Controller{Svc: bws, V: v, Log: log}
	paymentC := &paymentctrl.Controller{Svc: ps, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)
	e.Validator = validation.New()

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Auth:        authC,
		Book:        bookC,
		Reservation: resC,
		Borrow:      borrowC,
		Payment:     paymentC,

		JWTSecret: cfg.JWTSecret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	slog.Info("starting server", "env", cfg.Env, "port", port)

	e.Logger.Fatal(e.Start(":" + port))
}
