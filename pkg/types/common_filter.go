package types

import (
	"fmt"

	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq    CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt    CommonFilterOperator = "lt"
	CommonFilterOperatorLte   CommonFilterOperator = "lte"
	CommonFilterOperatorGt    CommonFilterOperator = "gt"
	CommonFilterOperatorGte   CommonFilterOperator = "gte"
	CommonFilterOperatorRange CommonFilterOperator = "range"
	CommonFilterOperatorIn    CommonFilterOperator = "in"
)

// CommonFilter is a single column predicate sent by list endpoints.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
}

// Validate checks the field against the allowed column set and that the
// operator has enough values.
func (f *CommonFilter) Validate(allowed map[string]struct{}) error {
	if f == nil {
		return fmt.Errorf("nil filter")
	}
	if _, ok := allowed[f.Field]; !ok {
		return fmt.Errorf("field %q is not filterable", f.Field)
	}
	switch f.Operator {
	case CommonFilterOperatorEq, CommonFilterOperatorNotEq, CommonFilterOperatorLt,
		CommonFilterOperatorLte, CommonFilterOperatorGt, CommonFilterOperatorGte, CommonFilterOperatorIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("filter on %q needs a value", f.Field)
		}
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return fmt.Errorf("range filter on %q needs two values", f.Field)
		}
	default:
		return fmt.Errorf("unsupported operator %q", f.Operator)
	}
	return nil
}

// Build constructs a GORM expression.
func (f *CommonFilter) Build(builder clause.Builder) {
	if len(f.Values) == 0 {
		return
	}
	value := f.Values[0]

	switch f.Operator {
	case CommonFilterOperatorEq:
		clause.Eq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorNotEq:
		clause.Neq{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLt:
		clause.Lt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorLte:
		clause.Lte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGt:
		clause.Gt{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorGte:
		clause.Gte{Column: f.Field, Value: value}.Build(builder)
	case CommonFilterOperatorRange:
		if len(f.Values) < 2 {
			return
		}
		clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]}).Build(builder)
	case CommonFilterOperatorIn:
		clause.IN{Column: f.Field, Values: f.Values}.Build(builder)
	}
}

// FiltersAnd joins filters with AND; an empty list matches everything.
type FiltersAnd []*CommonFilter

func (w FiltersAnd) Build(builder clause.Builder) {
	if len(w) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w))
	for _, f := range w {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}
