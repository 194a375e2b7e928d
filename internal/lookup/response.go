package lookup

import (
	"github.com/lepinkainen/buyback/internal/buyback"
)

// Response is the body returned for every lookup; either *SuccessResponse
// or *ErrorResponse.
type Response interface {
	isResponse()
}

// SuccessResponse carries the resolved book, the buyback quote and the profit.
type SuccessResponse struct {
	Title    string        `json:"title" yaml:"title"`
	ISBN     string        `json:"isbn" yaml:"isbn"`
	ISBN13   string        `json:"isbn13" yaml:"isbn13"`
	Year     string        `json:"year" yaml:"year"`
	Buyback  buyback.Quote `json:"buyback" yaml:"buyback"`
	BuyPrice string        `json:"buyPrice" yaml:"buyPrice"`
	Profit   *string       `json:"profit" yaml:"profit"`
}

// ErrorResponse describes why a lookup stopped. Title is the searched title
// for unknown books and the resolved title for unsupported ones.
type ErrorResponse struct {
	Message string `json:"error" yaml:"error"`
	Code    string `json:"code" yaml:"code"`
	Title   string `json:"title,omitempty" yaml:"title,omitempty"`
}

func (*SuccessResponse) isResponse() {}
func (*ErrorResponse) isResponse()   {}
