package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// cronValidator lazily registers a "cron" struct-tag rule on a shared
// validator.Validate, grounded on the teacher's WorkflowValidator.validateCron
// (cli/helpers/workflow.go): a cron expression is valid only if robfig/cron
// can parse it and it yields a next fire time within a year.
type cronValidator struct {
	once sync.Once
	v    *validator.Validate
}

var scheduleValidator = &cronValidator{}

func (c *cronValidator) validate() *validator.Validate {
	c.once.Do(func() {
		c.v = validator.New()
		_ = c.v.RegisterValidation("cron", validateCronField)
	})
	return c.v
}

func validateCronField(fl validator.FieldLevel) bool {
	return validateCronExpr(fl.Field().String()) == nil
}

// validateCronExpr reports whether expr parses as a standard five-field
// cron expression (or a "@every"/"@daily"-style descriptor) and fires at
// least once within the coming year.
func validateCronExpr(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron: empty expression")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return fmt.Errorf("cron: %w", err)
	}
	now := time.Now()
	if next := schedule.Next(now); !next.Before(now.AddDate(1, 0, 0)) {
		return fmt.Errorf("cron: %q never fires within a year", expr)
	}
	return nil
}

// cronEntry wraps a single schedule-rule string so it can be run through
// validator.Validate's struct-tag engine rather than calling
// validateCronExpr directly, the same indirection the teacher's
// WorkflowValidator uses for its own custom tags (jsonpath, cron).
type cronEntry struct {
	Expr string `validate:"required,cron"`
}

// scheduleRuleFromAny normalizes a decoded JSON request-body rule (always
// []any after ShouldBindJSON unmarshals into Spec.Rule's `any` field) into
// the []string cron-list Spec.ScheduleRule expects, validating every entry.
func scheduleRuleFromAny(rule any) ([]string, error) {
	raw, ok := rule.([]any)
	if !ok {
		return nil, fmt.Errorf("trigger: schedule rule must be a list of cron strings")
	}
	v := scheduleValidator.validate()
	exprs := make([]string, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("trigger: schedule rule entry %d must be a string", i)
		}
		if err := v.Struct(cronEntry{Expr: s}); err != nil {
			return nil, fmt.Errorf("trigger: schedule rule entry %d: %w", i, err)
		}
		exprs[i] = s
	}
	return exprs, nil
}
