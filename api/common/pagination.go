// Tooling for response pagination.
package common

import (
	"fmt"
	"net/http"
	"strconv"
)

const (
	LimitKey  = "limit"
	OffsetKey = "offset"

	DefaultLimit  = uint64(100)
	DefaultOffset = uint64(0)

	MaximumLimit = uint64(1000)
)

// Pagination is used to define parameters for pagination.
type Pagination struct {
	Limit  uint64
	Offset uint64
}

// NewPagination extracts pagination parameters from an http request.
func NewPagination(r *http.Request) (Pagination, error) {
	values := r.URL.Query()

	p := Pagination{
		Limit:  DefaultLimit,
		Offset: DefaultOffset,
	}
	var err error
	if v := values.Get(LimitKey); v != "" {
		if p.Limit, err = strconv.ParseUint(v, 10, 64); err != nil {
			return p, fmt.Errorf("%w: limit: %s", ErrBadRequest, err)
		}
	}
	if p.Limit > MaximumLimit {
		p.Limit = MaximumLimit
	}
	if v := values.Get(OffsetKey); v != "" {
		if p.Offset, err = strconv.ParseUint(v, 10, 64); err != nil {
			return p, fmt.Errorf("%w: offset: %s", ErrBadRequest, err)
		}
	}
	return p, nil
}

// Page returns the window of `items` selected by the pagination.
func Page[T any](p Pagination, items []T) []T {
	n := uint64(len(items))
	if p.Offset >= n {
		return []T{}
	}
	end := p.Offset + p.Limit
	if end > n || end < p.Offset {
		end = n
	}
	return items[p.Offset:end]
}
