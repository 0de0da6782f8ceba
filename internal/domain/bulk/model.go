package bulk

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Operation constants.
const (
	OperationMove   = "move"
	OperationDelete = "delete"
)

// Per-item failure reasons.
const (
	ReasonNotFound         = "not found"
	ReasonForeignTenant    = "not found in this workspace"
	ReasonAlreadyPublished = "already published"
)

// ErrInvalidRequest is returned before any item is touched when the request is malformed.
var ErrInvalidRequest = errors.New("invalid bulk request")

var validate = validator.New()

// Request asks for one operation applied to many scheduled items.
// PRE: NewDate has already passed the minimum lead-time check when Operation is move
type Request struct {
	Operation string    `validate:"required,oneof=move delete"`
	ItemIDs   []string  `validate:"required,min=1"`
	NewDate   time.Time `validate:"required_if=Operation move"`
	TenantID  string    `validate:"required"`
	UserID    string
}

// Validate checks the request shape.
// POST: returns an error wrapping ErrInvalidRequest on the first violation
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(verrs[0]))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "oneof":
		return field + " must be move or delete"
	case "min":
		return "at least one item id is required"
	case "required_if":
		return "move requires a new date"
	default:
		return field + " is required"
	}
}

// Failure records why one item was not mutated.
type Failure struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

// Outcome partitions the requested ids into succeeded and failed.
// INVARIANT: SuccessCount()+FailureCount() == Total()
type Outcome struct {
	Succeeded []string  `json:"succeeded"`
	Failed    []Failure `json:"failed"`
}

// Succeed records a mutated item.
func (o *Outcome) Succeed(id string) {
	o.Succeeded = append(o.Succeeded, id)
}

// Fail records an item that was left unchanged.
func (o *Outcome) Fail(id, reason string) {
	o.Failed = append(o.Failed, Failure{ItemID: id, Reason: reason})
}

func (o Outcome) SuccessCount() int { return len(o.Succeeded) }

func (o Outcome) FailureCount() int { return len(o.Failed) }

func (o Outcome) Total() int { return o.SuccessCount() + o.FailureCount() }

// IsFullSuccess reports whether every requested item was mutated.
func (o Outcome) IsFullSuccess() bool {
	return len(o.Failed) == 0
}
