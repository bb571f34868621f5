// model/book.go
package model

import "time"

type BookClassName string

const (
	ClassA BookClassName = "A"
	ClassB BookClassName = "B"
	ClassC BookClassName = "C"
)

// BookClass is the pricing tier attached to a book.
type BookClass struct {
	ID            int64         `json:"id"`
	Name          BookClassName `json:"name"`
	BorrowFee     float64       `json:"borrow_fee"`
	DepositAmount float64       `json:"deposit_amount"`
	FinePerDay    float64       `json:"fine_per_day"`
	CreatedAt     time.Time     `json:"created_at"`
}

type Book struct {
	ID                int64      `json:"id"`
	ISBN              string     `json:"isbn"`
	Title             string     `json:"title"`
	Author            string     `json:"author"`
	ShelfLocation     string     `json:"shelf_location"`
	TotalQuantity     int64      `json:"total_quantity"`
	AvailableQuantity int64      `json:"available_quantity"`
	BookClassID       *int64     `json:"book_class_id,omitempty"`
	BookClass         *BookClass `json:"book_class,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
