package fetch

import "errors"

var ErrInvalidDateRange = errors.New("invalid date range")

// PageQuery selects one page of items, optionally bounded by a publication
// date window (unix milliseconds). Page numbers are 1-based.
type PageQuery struct {
	Page      int
	PageSize  int
	StartDate int64
	EndDate   int64
}

// Validate rejects half-open or inverted date windows. A window needs both
// bounds and the start must precede the end.
func (q PageQuery) Validate() error {
	if q.StartDate == 0 && q.EndDate == 0 {
		return nil
	}
	if q.StartDate == 0 || q.EndDate == 0 {
		return ErrInvalidDateRange
	}
	if q.StartDate >= q.EndDate {
		return ErrInvalidDateRange
	}
	return nil
}

func (q PageQuery) skip() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// PageCount converts a server item estimate into a page total.
func PageCount(estimated, pageSize int) int {
	if estimated <= 0 || pageSize <= 0 {
		return 0
	}
	return (estimated + pageSize - 1) / pageSize
}
