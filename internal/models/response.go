package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

// Error represents error details
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// CartResponse wraps a cart for API responses
type CartResponse struct {
	Success bool    `json:"success"`
	Data    *Cart   `json:"data"`
	Message *string `json:"message,omitempty"`
}
