// Package response defines the JSON envelope every API endpoint answers with.
package response

// Response is the envelope: status is "success" or "error".
type Response struct {
	Status     string      `json:"status"`
	StatusCode int         `json:"status_code"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Meta       *Meta       `json:"meta,omitempty"`
}

// Meta describes the page a list response carries.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Success wraps data in a success envelope.
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paginated wraps one page of items together with its paging metadata.
func Paginated(statusCode int, items interface{}, meta Meta) Response {
	resp := Success(statusCode, items)
	resp.Meta = &meta
	return resp
}

// Error wraps a user-visible message in an error envelope.
func Error(statusCode int, message string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      message,
	}
}
