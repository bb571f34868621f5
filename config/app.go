package config

type App struct {
	Port        string `env:"APP_PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Env         string `env:"APP_ENV" default:"dev"`

	// Lifecycle knobs.
	ReservationExpiryHours int     `env:"RESERVATION_EXPIRY_HOURS" default:"24"`
	DepositPercentage      float64 `env:"DEPOSIT_PERCENTAGE" default:"1.0"`
	BorrowPeriodDays       int     `env:"BORROW_PERIOD_DAYS" default:"14"`
}
