package posting

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// LineInput is a proposed line as supplied by a caller.
type LineInput struct {
	AccountID   int64           `validate:"required,gt=0"`
	Type        ledger.LineType `validate:"required,oneof=debit credit"`
	Amount      ledger.Cents    `validate:"gte=0"`
	Description string          `validate:"max=255"`
}

// DraftInput creates a draft transaction. Line balance is checked when posting, not here.
type DraftInput struct {
	CompanyID   int64       `validate:"required,gt=0"`
	Date        time.Time   `validate:"required"`
	Description string      `validate:"max=500"`
	Reference   string      `validate:"max=100"`
	CreatedBy   int64       `validate:"required,gt=0"`
	Lines       []LineInput `validate:"dive"`
}

// UpdateDraftInput replaces the editable fields of a draft.
type UpdateDraftInput struct {
	TransactionID uuid.UUID   `validate:"required"`
	Date          time.Time   `validate:"required"`
	Description   string      `validate:"max=500"`
	Reference     string      `validate:"max=100"`
	ActorID       int64       `validate:"required,gt=0"`
	Lines         []LineInput `validate:"dive"`
}

// PostInput requests immediate posting of a draft.
type PostInput struct {
	TransactionID uuid.UUID `validate:"required"`
	ActorID       int64     `validate:"required,gt=0"`
}

// VoidInput reverses a posted transaction.
type VoidInput struct {
	TransactionID uuid.UUID `validate:"required"`
	ActorID       int64     `validate:"required,gt=0"`
	Reason        string    `validate:"required,max=500"`
}

func toLines(in []LineInput) []ledger.Line {
	out := make([]ledger.Line, 0, len(in))
	for _, l := range in {
		out = append(out, ledger.Line{
			AccountID:   l.AccountID,
			Type:        l.Type,
			Amount:      l.Amount,
			Description: strings.TrimSpace(l.Description),
		})
	}
	return out
}

func checkShape(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return ledger.NewInputError(strings.Join(msgs, "; "))
}
