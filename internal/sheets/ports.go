package sheets

import (
	"context"
	"errors"

	"orcamento/internal/core"
)

// ErrRejected marks writes the spreadsheet refused for a reason retrying
// will not fix, such as missing permission or an unknown spreadsheet.
var ErrRejected = errors.New("spreadsheet rejected the request")

// MonthWriter replaces the exported copy of one month.
type MonthWriter interface {
	WriteMonth(ctx context.Context, view core.MonthView) error
}
