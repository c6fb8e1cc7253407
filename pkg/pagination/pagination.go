package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// Bounds are the default and maximum page sizes of one endpoint.
type Bounds struct {
	Default int
	Max     int
}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit= and ?offset= from the request. A missing or
// non-positive limit takes b.Default; limits above b.Max are capped.
func FromContext(c echo.Context, b Bounds) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = b.Default
	}
	if b.Max > 0 && limit > b.Max {
		limit = b.Max
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// Response wraps one page of results. HasMore is true when the page came
// back full, so another request may return more rows.
type Response struct {
	Data    any  `json:"data"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewResponse builds the envelope for a page holding n rows.
func NewResponse(data any, p Params, n int) *Response {
	return &Response{
		Data:    data,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: n > 0 && n >= p.Limit,
	}
}
