package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   Category `json:"category"`
	Amount Money    `json:"amount"`
}

// MonthLabels are the short month names used by the monthly breakdown.
var MonthLabels = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
