package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/subscription-radar/internal/domain/subscriptions/repository"
	"github.com/FACorreiaa/subscription-radar/pkg/money"
)

// Draft is the user input for a new subscription. Price is the text the user
// typed, e.g. "45.90" or "45,90".
type Draft struct {
	Name        string `json:"name" validate:"required"`
	Price       string `json:"price" validate:"required"`
	Category    string `json:"category" validate:"required,subscription_category"`
	NextPayment string `json:"nextPayment" validate:"required,datetime=2006-01-02"`
}

// Patch carries the fields an update changes. Nil fields are left alone.
type Patch struct {
	Name        *string `json:"name,omitempty" validate:"omitnil,min=1"`
	Price       *string `json:"price,omitempty" validate:"omitnil,min=1"`
	Category    *string `json:"category,omitempty" validate:"omitnil,subscription_category"`
	NextPayment *string `json:"nextPayment,omitempty" validate:"omitnil,datetime=2006-01-02"`
	Status      *string `json:"status,omitempty" validate:"omitnil,oneof=active paused expired"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("subscription_category", func(fl validator.FieldLevel) bool {
		_, err := repository.ParseCategory(fl.Field().String())
		return err == nil
	})

	return v
}

// validateStruct runs the validator and converts the first failure.
func (s *Store) validateStruct(op string, in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Op: op, Field: "input", Reason: err.Error()}
	}

	fe := verrs[0]
	return &ValidationError{Op: op, Field: fe.Field(), Reason: reasonFor(fe)}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must not be blank"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "subscription_category":
		names := make([]string, len(repository.Categories))
		for i, c := range repository.Categories {
			names[i] = string(c)
		}
		return "must be one of " + strings.Join(names, ", ")
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// parsePrice accepts finite, non-negative amounts up to money.MaxAmount and
// rounds them to the store currency's minor digits.
func (s *Store) parsePrice(op, field, raw string) (decimal.Decimal, error) {
	price, err := money.ParseDecimal(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Op: op, Field: field, Reason: "must be a number"}
	}
	return s.checkAmount(op, field, price)
}

func (s *Store) checkAmount(op, field string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, &ValidationError{Op: op, Field: field, Reason: "must not be negative"}
	}
	rounded, err := money.RoundToCurrency(amount, s.currency)
	if err != nil {
		return decimal.Zero, &ValidationError{Op: op, Field: field, Reason: "must not exceed " + money.MaxAmount.String()}
	}
	return rounded, nil
}

// newFromDraft validates draft and builds an unsaved subscription.
func (s *Store) newFromDraft(op string, draft Draft) (*repository.Subscription, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Price = strings.TrimSpace(draft.Price)
	draft.NextPayment = strings.TrimSpace(draft.NextPayment)

	if err := s.validateStruct(op, draft); err != nil {
		return nil, err
	}

	price, err := s.parsePrice(op, "price", draft.Price)
	if err != nil {
		return nil, err
	}
	category, _ := repository.ParseCategory(draft.Category)
	next, err := repository.ParseDate(draft.NextPayment)
	if err != nil {
		return nil, &ValidationError{Op: op, Field: "nextPayment", Reason: err.Error()}
	}

	return &repository.Subscription{
		Name:            draft.Name,
		Price:           price,
		Category:        category,
		NextPayment:     next,
		Status:          repository.StatusActive,
		PaymentHistory:  []repository.Payment{},
		ReminderHandles: []repository.ReminderHandle{},
	}, nil
}

// parsedPatch is a validated Patch with typed values.
type parsedPatch struct {
	name        *string
	price       *decimal.Decimal
	category    *repository.Category
	nextPayment *repository.Date
	status      *repository.Status
}

func (s *Store) parsePatch(op string, patch Patch) (*parsedPatch, error) {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	patch.Name = trim(patch.Name)
	patch.Price = trim(patch.Price)
	patch.NextPayment = trim(patch.NextPayment)
	patch.Status = trim(patch.Status)

	if err := s.validateStruct(op, patch); err != nil {
		return nil, err
	}

	out := &parsedPatch{name: patch.Name}
	if patch.Price != nil {
		price, err := s.parsePrice(op, "price", *patch.Price)
		if err != nil {
			return nil, err
		}
		out.price = &price
	}
	if patch.Category != nil {
		c, _ := repository.ParseCategory(*patch.Category)
		out.category = &c
	}
	if patch.NextPayment != nil {
		d, err := repository.ParseDate(*patch.NextPayment)
		if err != nil {
			return nil, &ValidationError{Op: op, Field: "nextPayment", Reason: err.Error()}
		}
		out.nextPayment = &d
	}
	if patch.Status != nil {
		st := repository.Status(*patch.Status)
		out.status = &st
	}
	return out, nil
}
