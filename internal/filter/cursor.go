package filter

import "fintrack/internal/core"

// Cursor is the pagination state of one view: the current filter, page
// size and page number. Navigation outside [1, totalPages] is rejected and
// leaves the cursor unchanged.
type Cursor struct {
	Criteria Criteria
	Size     int
	Number   int
}

// NewCursor starts at page 1.
func NewCursor(size int) *Cursor {
	return &Cursor{Size: size, Number: 1}
}

// SetCriteria replaces the filter and rewinds to page 1.
func (c *Cursor) SetCriteria(criteria Criteria) {
	c.Criteria = criteria
	c.Number = 1
}

// GoTo moves to page n if it exists for a list of count items.
func (c *Cursor) GoTo(n, count int) error {
	if c.Size <= 0 {
		return ErrInvalidPageSize
	}
	total := TotalPages(count, c.Size)
	if n < 1 || n > total {
		return pageError(n, total)
	}
	c.Number = n
	return nil
}

// Next advances one page.
func (c *Cursor) Next(count int) error {
	return c.GoTo(c.Number+1, count)
}

// Prev goes back one page.
func (c *Cursor) Prev(count int) error {
	return c.GoTo(c.Number-1, count)
}

// Page filters txs and returns the current page. When the list shrank
// below the current page (after a delete) the cursor clamps to the last page.
func (c *Cursor) Page(txs []core.Transaction) (Page, error) {
	filtered := Apply(txs, c.Criteria)
	if c.Size <= 0 {
		return Page{}, ErrInvalidPageSize
	}
	if total := TotalPages(len(filtered), c.Size); c.Number > total {
		c.Number = total
	}
	if c.Number < 1 {
		c.Number = 1
	}
	return Paginate(filtered, c.Size, c.Number)
}
