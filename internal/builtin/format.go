package builtin

import (
	"context"
	"strings"
	"time"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/pkg/schema"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// maxRuns bounds the count parameter of next-run.
const maxRuns = 100

// Named layouts accepted by the date and next-run format parameter. Any other
// value is used as a Go time layout.
var layouts = map[string]string{
	"date":     time.DateOnly,
	"time":     time.TimeOnly,
	"datetime": time.DateTime,
	"rfc3339":  time.RFC3339,
	"rfc1123":  time.RFC1123,
	"kitchen":  time.Kitchen,
}

func layoutOf(format string) string {
	if format == "" {
		return time.RFC3339
	}
	if l, ok := layouts[strings.ToLower(format)]; ok {
		return l
	}
	return format
}

// number formats a numeric value for the active locale.
//
// Formats: "" or "decimal", "integer", "percent", or a digit pattern such
// as "0.00" fixing the number of fraction digits.
func numberFactory(opts Options) action.Factory {
	return &factory{name: "number", formats: true, create: func(ctx context.Context, params action.Params) (action.Action, error) {
		if !params.Has("value") {
			return nil, schema.NewError(schema.ErrCodeValidation, "number: missing required parameter \"value\"")
		}
		v, err := params.Float(ctx, "value", 0)
		if err != nil {
			return nil, err
		}
		format, err := params.String(ctx, "format", "")
		if err != nil {
			return nil, err
		}
		formatter, err := numberFormatter(format)
		if err != nil {
			return nil, err
		}
		return run(func(_ context.Context, _ action.Body, sc *scope.Scope, w action.Writer) error {
			p := message.NewPrinter(localeOf(sc, opts.Locale))
			return w.Write(p.Sprint(formatter(v)))
		}), nil
	}}
}

func numberFormatter(format string) (func(v float64) number.Formatter, error) {
	switch format {
	case "", "decimal":
		return func(v float64) number.Formatter { return number.Decimal(v) }, nil
	case "integer":
		return func(v float64) number.Formatter { return number.Decimal(v, number.MaxFractionDigits(0)) }, nil
	case "percent":
		return func(v float64) number.Formatter { return number.Percent(v) }, nil
	}

	if strings.Trim(format, "0#.") == "" && strings.Count(format, ".") <= 1 {
		digits := 0
		if _, frac, ok := strings.Cut(format, "."); ok {
			digits = len(frac)
		}
		return func(v float64) number.Formatter {
			return number.Decimal(v, number.MinFractionDigits(digits), number.MaxFractionDigits(digits))
		}, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "number: unknown format %q", format)
}

// date formats a time value with a named layout or a Go time layout.
func dateFactory(opts Options) action.Factory {
	return &factory{name: "date", formats: true, create: func(ctx context.Context, params action.Params) (action.Action, error) {
		t, err := params.Time(ctx, "value", time.Time{})
		if err != nil {
			return nil, err
		}
		if t.IsZero() {
			t = opts.Now()
		}
		format, err := params.String(ctx, "format", "")
		if err != nil {
			return nil, err
		}
		return emit(t.Format(layoutOf(format))), nil
	}}
}

// next-run writes the next count activation times of a cron expression
// after from.
func nextRunFactory(opts Options) action.Factory {
	return &factory{name: "next-run", formats: true, create: func(ctx context.Context, params action.Params) (action.Action, error) {
		spec, err := params.String(ctx, "spec", "")
		if err != nil {
			return nil, err
		}
		if spec == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "next-run: missing required parameter \"spec\"")
		}
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "next-run: invalid cron expression %q", spec).WithCause(err)
		}
		from, err := params.Time(ctx, "from", time.Time{})
		if err != nil {
			return nil, err
		}
		if from.IsZero() {
			from = opts.Now()
		}
		count, err := params.Int(ctx, "count", 1)
		if err != nil {
			return nil, err
		}
		if count < 1 || count > maxRuns {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "next-run: count must be between 1 and %d, got %d", maxRuns, count)
		}
		format, err := params.String(ctx, "format", "")
		if err != nil {
			return nil, err
		}
		layout := layoutOf(format)

		return run(func(_ context.Context, _ action.Body, _ *scope.Scope, w action.Writer) error {
			t := from
			for range count {
				t = sched.Next(t)
				if t.IsZero() {
					return nil
				}
				if err := w.Write(t.Format(layout)); err != nil {
					return err
				}
			}
			return nil
		}), nil
	}}
}

// upper upper-cases value using the casing rules of the active locale.
func upperFactory(opts Options) action.Factory {
	return &factory{name: "upper", create: func(ctx context.Context, params action.Params) (action.Action, error) {
		s, err := params.String(ctx, "value", "")
		if err != nil {
			return nil, err
		}
		return run(func(_ context.Context, _ action.Body, sc *scope.Scope, w action.Writer) error {
			return w.Write(cases.Upper(localeOf(sc, opts.Locale)).String(s))
		}), nil
	}}
}

// parseLocale accepts a language.Tag or a BCP 47 string.
func parseLocale(v any) (language.Tag, error) {
	switch tag := v.(type) {
	case language.Tag:
		return tag, nil
	case string:
		t, err := language.Parse(tag)
		if err != nil {
			return language.Und, schema.NewErrorf(schema.ErrCodeValidation, "invalid locale %q", tag).WithCause(err)
		}
		return t, nil
	}
	return language.Und, schema.NewErrorf(schema.ErrCodeValidation, "invalid locale of type %T", v)
}
