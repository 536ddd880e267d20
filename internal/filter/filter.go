// Package filter narrows transaction lists and slices them into pages.
package filter

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"fintrack/internal/core"
)

// All disables a filter dimension, as does the empty string.
const All = "all"

var (
	ErrInvalidPageSize = errors.New("page size must be positive")
	ErrPageOutOfRange  = errors.New("page out of range")
)

// Criteria holds the optional predicates applied by Apply. Empty or "all"
// values are ignored.
type Criteria struct {
	Type     string
	Category string
	Date     string
	Text     string
}

// Page is one slice of a filtered list.
type Page struct {
	Items      []core.Transaction `json:"items"`
	Number     int                `json:"page"`
	Size       int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
	TotalItems int                `json:"totalItems"`
}

// ParseCriteria reads criteria from a key lookup such as url.Values.Get.
func ParseCriteria(get func(string) string) Criteria {
	return Criteria{
		Type:     strings.TrimSpace(get("type")),
		Category: strings.TrimSpace(get("category")),
		Date:     strings.TrimSpace(get("date")),
		Text:     strings.TrimSpace(get("q")),
	}
}

func active(v string) bool {
	return v != "" && !strings.EqualFold(v, All)
}

// IsZero reports whether no dimension is active.
func (c Criteria) IsZero() bool {
	return !active(c.Type) && !active(c.Category) && !active(c.Date) && !active(c.Text)
}

// Match reports whether tx satisfies every active predicate.
func (c Criteria) Match(tx core.Transaction) bool {
	if active(c.Type) && !strings.EqualFold(c.Type, string(tx.Type)) {
		return false
	}
	if active(c.Category) && !strings.EqualFold(c.Category, string(tx.Category)) {
		return false
	}
	if active(c.Date) && c.Date != tx.Date.String() {
		return false
	}
	if active(c.Text) {
		needle := strings.ToLower(c.Text)
		if !strings.Contains(strings.ToLower(tx.Title), needle) &&
			!strings.Contains(strings.ToLower(string(tx.Category)), needle) {
			return false
		}
	}
	return true
}

// Apply returns the transactions matching c, in their original order. The
// result never aliases txs.
func Apply(txs []core.Transaction, c Criteria) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if c.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// TotalPages returns ceil(count/size); an empty list still has one page.
func TotalPages(count, size int) int {
	if size <= 0 {
		return 0
	}
	if count == 0 {
		return 1
	}
	return (count + size - 1) / size
}

// Paginate returns the 1-indexed page of txs.
func Paginate(txs []core.Transaction, size, number int) (Page, error) {
	if size <= 0 {
		return Page{}, ErrInvalidPageSize
	}
	total := TotalPages(len(txs), size)
	if number < 1 || number > total {
		return Page{}, pageError(number, total)
	}
	start := (number - 1) * size
	end := start + size
	if end > len(txs) {
		end = len(txs)
	}
	items := make([]core.Transaction, end-start)
	copy(items, txs[start:end])
	return Page{
		Items:      items,
		Number:     number,
		Size:       size,
		TotalPages: total,
		TotalItems: len(txs),
	}, nil
}

func pageError(number, total int) error {
	return &PageError{Requested: number, TotalPages: total}
}

// PageError reports a page number outside [1, TotalPages].
type PageError struct {
	Requested  int
	TotalPages int
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d out of range [1, %d]", e.Requested, e.TotalPages)
}

func (e *PageError) Unwrap() error {
	return ErrPageOutOfRange
}

// NewestFirst orders a copy of txs by id, newest first.
func NewestFirst(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// ByDateDesc orders a copy of txs by date, newest first, then by id.
func ByDateDesc(txs []core.Transaction) []core.Transaction {
	out := append([]core.Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
