// Package builtin provides the core action library and the dynamic "var"
// library every stencil registry starts with.
package builtin

import (
	"context"
	"io/fs"
	"reflect"
	"time"

	"github.com/rendis/stencil/internal/action"
	"github.com/rendis/stencil/internal/library"
	"github.com/rendis/stencil/internal/scope"
	"github.com/rendis/stencil/internal/store"
	"github.com/rendis/stencil/internal/validation"
	"github.com/spf13/cast"
	"golang.org/x/text/language"
)

// Library abbreviations.
const (
	CoreAbbreviation = "c"
	VarsAbbreviation = "v"
)

// LocaleKey is the implicit object holding the active language.Tag.
const LocaleKey = "locale"

// Options configures the built-in libraries.
type Options struct {
	// Now is the clock used by next-run. Defaults to time.Now.
	Now func() time.Time
	// Locale is used when no locale implicit object is in scope.
	Locale language.Tag
	// Journal receives trace records. Nil disables tracing output.
	Journal store.Journal
	// Validator backs the assert action's schema checks. Nil means a
	// fresh validator is created on demand.
	Validator *validation.SchemaValidator
	// Files is the tree the include action reads from. Nil disables include.
	Files fs.FS
	// MaxIncludeSize caps the bytes include reads from one file.
	MaxIncludeSize int64
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Locale == language.Und {
		o.Locale = language.English
	}
	if o.MaxIncludeSize <= 0 {
		o.MaxIncludeSize = defaultMaxIncludeSize
	}
	return o
}

// NewRegistry returns a registry holding the core and var libraries, with
// core as the default.
func NewRegistry(opts Options) (*library.Registry, error) {
	reg := library.NewRegistry(CoreAbbreviation)
	if err := Register(reg, opts); err != nil {
		return nil, err
	}
	return reg, nil
}

// Register adds the core and var libraries to reg.
func Register(reg *library.Registry, opts Options) error {
	core, err := Core(opts)
	if err != nil {
		return err
	}
	if err := reg.Register(core); err != nil {
		return err
	}
	return reg.Register(Vars())
}

// Core builds the core library.
func Core(opts Options) (*library.Library, error) {
	opts = opts.withDefaults()
	lib := library.New(CoreAbbreviation, "core", "Control flow, formatting and utility actions")

	actions := []action.Factory{
		outFactory(),
		ifFactory(),
		eachFactory(),
		setFactory(),
		withFactory(),
		captureFactory(),
		numberFactory(opts),
		dateFactory(opts),
		nextRunFactory(opts),
		upperFactory(opts),
		hashFactory(),
		hmacFactory(),
		uuidFactory(),
		assertFactory(opts),
		includeFactory(opts),
	}
	for _, f := range actions {
		if err := lib.AddAction(f); err != nil {
			return nil, err
		}
	}

	contributions := []action.ContributionFactory{
		localeContribution(),
		formatContribution(),
		whenContribution(),
		intoContribution(),
		argsContribution(),
		traceContribution(opts.Journal),
	}
	for _, c := range contributions {
		if err := lib.AddContribution(c); err != nil {
			return nil, err
		}
	}

	functions := []library.FunctionDecl{
		{Name: "upcase", Action: "upper", Args: []string{"value"}, Description: "Upper-case a string in the active locale"},
		{Name: "format_number", Action: "number", Args: []string{"value", "format"}, Description: "Format a number in the active locale"},
		{Name: "format_date", Action: "date", Args: []string{"value", "format"}, Description: "Format a time value"},
		{Name: "next_run", Action: "next-run", Args: []string{"spec", "from", "count"}, Description: "Next activation time(s) of a cron expression"},
		{Name: "hash", Action: "hash", Args: []string{"value", "algorithm"}, Description: "Hex digest of a value"},
		{Name: "hmac", Action: "hmac", Args: []string{"value", "key", "algorithm"}, Description: "Hex HMAC of a value"},
		{Name: "uuid", Action: "uuid", Description: "Random v4 UUID"},
		{Name: "read_file", Action: "include", Args: []string{"path", "encoding"}, Description: "Contents of a file from the include tree"},
	}
	for _, fn := range functions {
		if err := lib.AddFunction(fn); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

// --- helpers ---

// factory is the Factory used by every core action. Actions that honour a
// "format" parameter set formats so the format contribution accepts them.
type factory struct {
	name    string
	formats bool
	create  func(ctx context.Context, params action.Params) (action.Action, error)
}

func (f *factory) Name() string { return f.name }

func (f *factory) Create(ctx context.Context, params action.Params) (action.Action, error) {
	return f.create(ctx, params)
}

// AcceptsFormat reports whether the action reads a "format" parameter.
func (f *factory) AcceptsFormat() bool { return f.formats }

// simple is an Action whose behavior is a closure over its evaluated
// parameters.
type simple struct {
	action.Base
	exec func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error
}

func (s *simple) Execute(ctx context.Context, sc *scope.Scope, w action.Writer) error {
	return s.exec(ctx, s.Body(), sc, w)
}

func run(exec func(ctx context.Context, body action.Body, sc *scope.Scope, w action.Writer) error) action.Action {
	return &simple{exec: exec}
}

// emit returns an action that writes v.
func emit(v any) action.Action {
	return run(func(_ context.Context, _ action.Body, _ *scope.Scope, w action.Writer) error {
		return w.Write(v)
	})
}

// noop returns an action that writes nothing.
func noop() action.Action {
	return run(func(context.Context, action.Body, *scope.Scope, action.Writer) error { return nil })
}

// Truthy reports whether v counts as true in a condition: nil, false, zero
// numbers, empty strings and empty collections are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return cast.ToFloat64(val) != 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// localeOf returns the active locale: the implicit object when present,
// def otherwise.
func localeOf(sc *scope.Scope, def language.Tag) language.Tag {
	if sc == nil {
		return def
	}
	v, ok := sc.ImplicitObject(LocaleKey)
	if !ok {
		return def
	}
	switch tag := v.(type) {
	case language.Tag:
		return tag
	case string:
		if t, err := language.Parse(tag); err == nil {
			return t
		}
	}
	return def
}
