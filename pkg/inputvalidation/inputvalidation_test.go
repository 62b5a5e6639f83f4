package inputvalidation_test

import (
	"testing"

	"github.com/ha1tch/pantrycache/pkg/inputvalidation"
)

func TestRequiredFieldValidatorReportsMissingFields(t *testing.T) {
	v := inputvalidation.NewRequiredFieldValidator(map[string][]string{
		"category": {"name"},
	})

	valid, errs := v.Validate("category", map[string]interface{}{})
	if valid {
		t.Fatal("expected validation to fail for empty body")
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestRequiredFieldValidatorPassesWhenPresent(t *testing.T) {
	v := inputvalidation.NewRequiredFieldValidator(map[string][]string{
		"category": {"name"},
	})

	valid, errs := v.Validate("category", map[string]interface{}{"name": "produce"})
	if !valid {
		t.Fatalf("expected validation to pass, got errors %v", errs)
	}
}

func TestRequiredFieldValidatorTreatsNullAsMissing(t *testing.T) {
	v := inputvalidation.NewRequiredFieldValidator(map[string][]string{
		"category": {"name"},
	})

	valid, _ := v.Validate("category", map[string]interface{}{"name": nil})
	if valid {
		t.Fatal("expected a null required field to fail validation")
	}
}

func TestRequiredFieldValidatorUnknownKindPasses(t *testing.T) {
	v := inputvalidation.NewRequiredFieldValidator(map[string][]string{
		"category": {"name"},
	})

	valid, errs := v.Validate("unregistered", map[string]interface{}{})
	if !valid {
		t.Fatalf("expected unregistered kind to pass with no rules, got errors %v", errs)
	}
}

func TestNoOpValidatorAlwaysPasses(t *testing.T) {
	v := inputvalidation.NewNoOpValidator()
	valid, errs := v.Validate("anything", map[string]interface{}{})
	if !valid || errs != nil {
		t.Fatalf("expected NoOpValidator to always pass, got valid=%v errs=%v", valid, errs)
	}
}
