package pagination

import (
	"strconv"

	"leavemgmt/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads page and limit from the query string. Missing or invalid values fall back to the
// defaults and limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	return New(c.Query("page"), c.Query("limit"))
}

// New validates raw page and limit strings.
func New(rawPage, rawLimit string) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Meta describes the page p of a result set holding total rows.
func (p Params) Meta(total int64) response.Meta {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return response.Meta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}
