package service

import (
	"time"

	"github.com/classkit/classkit/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EventInput carries everything a teacher supplies when creating an event.
type EventInput struct {
	SchoolID    int64            `validate:"required"`
	ClassID     *int64           `validate:"omitempty,gt=0"`
	Title       string           `validate:"required,max=200"`
	Description string           `validate:"max=5000"`
	StartAt     time.Time        `validate:"required"`
	EndAt       time.Time        `validate:"required"`
	Visibility  model.Visibility `validate:"required,oneof=class school private"`

	RequiresForm      bool
	Cost              *decimal.Decimal
	OccurrenceDates   []time.Time
	CostPerOccurrence *decimal.Decimal
	FormBlob          []byte
	FormDueDate       *time.Time
}

// EventPatch updates an event. Pointer fields replace when set; Clear flags
// null out the optional fields independently.
type EventPatch struct {
	Title       *string           `validate:"omitempty,max=200"`
	Description *string           `validate:"omitempty,max=5000"`
	StartAt     *time.Time        `validate:"-"`
	EndAt       *time.Time        `validate:"-"`
	Visibility  *model.Visibility `validate:"omitempty,oneof=class school private"`

	RequiresForm *bool

	Cost                   *decimal.Decimal
	ClearCost              bool
	OccurrenceDates        []time.Time
	ClearOccurrenceDates   bool
	CostPerOccurrence      *decimal.Decimal
	ClearCostPerOccurrence bool
	FormBlob               []byte
	ClearFormBlob          bool
	FormDueDate            *time.Time
	ClearFormDueDate       bool
}

// SlotWindow is one bookable time window in a bulk slot creation.
type SlotWindow struct {
	StartAt time.Time `validate:"required"`
	EndAt   time.Time `validate:"required"`
}

// ManualBookingInput identifies an account-less parent for a teacher-booked
// slot.
type ManualBookingInput struct {
	Name  string  `validate:"required,max=200"`
	Email *string `validate:"omitempty,email"`
}

func validateInput(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return model.Invalidf("validate input: %v", err)
	}
	return nil
}
