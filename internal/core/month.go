package core

import (
	"errors"
	"fmt"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

const monthKeyLayout = "2006-01"

var ErrInvalidMonth = errors.New("invalid month key")

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// MonthKeyOf returns the key of the month containing t, in t's location.
func MonthKeyOf(t time.Time) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// NewMonthKey builds a key from year and month number (1-12).
func NewMonthKey(year, month int) (MonthKey, error) {
	if month < 1 || month > 12 || year < 1 || year > 9999 {
		return "", fmt.Errorf("%w: %d-%d", ErrInvalidMonth, year, month)
	}
	return MonthKey(fmt.Sprintf("%04d-%02d", year, month)), nil
}

func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthKeyOf(t), nil
}

// FirstDay returns midnight UTC of the first day of the month.
// The key must be valid.
func (k MonthKey) FirstDay() time.Time {
	t, err := time.Parse(monthKeyLayout, string(k))
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddMonths shifts the key by n months (negative n goes back).
func (k MonthKey) AddMonths(n int) MonthKey {
	return MonthKeyOf(k.FirstDay().AddDate(0, n, 0))
}

func (k MonthKey) Year() int { return k.FirstDay().Year() }

func (k MonthKey) Month() int { return int(k.FirstDay().Month()) }

// Title returns the pt-BR title shown in the month navigator, e.g. "janeiro de 2024".
func (k MonthKey) Title() string {
	first := k.FirstDay()
	if first.IsZero() {
		return string(k)
	}
	return fmt.Sprintf("%s de %d", monthNames[first.Month()-1], first.Year())
}

func (k MonthKey) String() string { return string(k) }
