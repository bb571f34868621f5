package book

type CreateBookReq struct {
	ISBN              string `json:"isbn" validate:"required"`
	Title             string `json:"title" validate:"required"`
	Author            string `json:"author" validate:"required"`
	ShelfLocation     string `json:"shelf_location"`
	TotalQuantity     int64  `json:"total_quantity" validate:"required,gt=0"`
	AvailableQuantity int64  `json:"available_quantity" validate:"gte=0"`
	BookClassID       *int64 `json:"book_class_id"`
}

type UpdateBookReq struct {
	ISBN              string `json:"isbn" validate:"required"`
	Title             string `json:"title" validate:"required"`
	Author            string `json:"author" validate:"required"`
	ShelfLocation     string `json:"shelf_location"`
	TotalQuantity     int64  `json:"total_quantity" validate:"required,gt=0"`
	AvailableQuantity int64  `json:"available_quantity" validate:"gte=0"`
	BookClassID       *int64 `json:"book_class_id"`
}

type AdjustAvailabilityReq struct {
	Delta int64 `json:"delta" validate:"required"`
}
