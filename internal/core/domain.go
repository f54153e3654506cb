package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  EntryType = "INCOME"
	Expense EntryType = "EXPENSE"
)

// Fixed category labels. The values are the labels stored in the document
// and shown in the UI.
const (
	CategorySalary     Category = "Salário"
	CategoryInvestment Category = "Investimento"
	CategoryMonthly    Category = "Mensal"
	CategoryLeisure    Category = "Lazer"
	CategoryFood       Category = "Alimentação"
	CategoryTransport  Category = "Transporte"
	CategoryHealth     Category = "Saúde"
	CategoryEducation  Category = "Educação"
	CategoryCreditCard Category = "Cartão de Crédito"
	CategoryOthers     Category = "Outros"
)

type (
	EntryType string

	Category string

	// BudgetEntry is a single recorded income or expense.
	BudgetEntry struct {
		ID          string    `json:"id"`
		Description string    `json:"description"`
		Amount      Money     `json:"amount"`
		Type        EntryType `json:"type"`
		Category    Category  `json:"category"`
		Date        time.Time `json:"date"`
		MonthKey    MonthKey  `json:"monthKey"`
		IsPaid      bool      `json:"isPaid"`
	}
)

// MaxDescriptionLength is the longest description, in characters, a new entry
// may carry.
const MaxDescriptionLength = 200

var (
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrInvalidType      = errors.New("invalid entry type")
	ErrInvalidCategory  = errors.New("invalid category")
)

var categories = []Category{
	CategorySalary,
	CategoryInvestment,
	CategoryMonthly,
	CategoryLeisure,
	CategoryFood,
	CategoryTransport,
	CategoryHealth,
	CategoryEducation,
	CategoryCreditCard,
	CategoryOthers,
}

// Categories returns the fixed category labels in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

func (c Category) IsValid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// IsRecurring reports whether entries of this category show up in every month.
func (c Category) IsRecurring() bool {
	return c == CategoryMonthly
}

// EditableInPlace reports whether the UI offers inline amount editing for the
// category. This is presentation policy; the store accepts amount updates for
// any entry.
func (c Category) EditableInPlace() bool {
	return c == CategoryMonthly || c == CategoryCreditCard
}

func (t EntryType) IsValid() bool {
	return t == Income || t == Expense
}

// Label returns the pt-BR label used in prompts and tables.
func (t EntryType) Label() string {
	if t == Income {
		return "ENTRADA"
	}
	return "SAÍDA"
}

func (e BudgetEntry) IsExpense() bool {
	return e.Type == Expense
}

// Validate checks the entry fields. The description length is checked last,
// so ErrDescriptionTooLong means every other field is valid.
func (e BudgetEntry) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Type.IsValid() {
		return ErrInvalidType
	}
	if !e.Category.IsValid() {
		return ErrInvalidCategory
	}
	if _, err := ParseMonthKey(string(e.MonthKey)); err != nil {
		return err
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}
