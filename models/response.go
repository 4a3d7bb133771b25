package models

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Message string `json:"message" example:"unknown table: \"orders\""`
}
