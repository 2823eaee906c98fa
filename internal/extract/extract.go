package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// ErrExtraction matches every *Failure via errors.Is.
var ErrExtraction = errors.New("extraction failed")

type Reason string

const (
	ReasonNoPayload Reason = "no_payload" // no delimiter pair in the text
	ReasonMalformed Reason = "malformed"  // span is not parseable
	ReasonInvalid   Reason = "invalid"    // parsed but violates the record schema
)

// Failure is the typed result of an extraction that produced no record.
type Failure struct {
	Target string
	Reason Reason
	Detail string
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("extracting %s: %s", f.Target, f.Reason)
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func (f *Failure) Is(target error) bool {
	return target == ErrExtraction
}

// ItemError describes one list element that was dropped.
type ItemError struct {
	Index  int    `json:"index"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail"`
}

// ListResult holds the surviving items of a list extraction, in source
// order, and the items that were dropped.
type ListResult[T any] struct {
	Items   []T
	Dropped []ItemError
}

type Option func(*options)

type options struct {
	locator Locator
}

// WithLocator replaces the default OuterSpan heuristic.
func WithLocator(l Locator) Option {
	return func(o *options) {
		o.locator = l
	}
}

// Extractor recovers records of type T from free-form model output. The
// validation schema is derived from T's Go definition: every field without
// omitempty is required, and jsonschema struct tags add enums and bounds.
type Extractor[T any] struct {
	target     string
	locator    Locator
	schema     *gojsonschema.Schema
	schemaJSON []byte
}

// New compiles the schema for T.
func New[T any](opts ...Option) (*Extractor[T], error) {
	o := options{locator: OuterSpan{}}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := GenerateSchema[T]()
	if err != nil {
		return nil, err
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %s: %w", targetName[T](), err)
	}

	return &Extractor[T]{
		target:     targetName[T](),
		locator:    o.locator,
		schema:     schema,
		schemaJSON: raw,
	}, nil
}

// MustNew is New for package-level extractors whose types are fixed at compile time.
func MustNew[T any](opts ...Option) *Extractor[T] {
	e, err := New[T](opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// GenerateSchema renders T as a JSON schema document. Unknown properties are
// tolerated so that chatty models adding fields do not lose the record.
func GenerateSchema[T any]() ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	var v T
	s := reflector.Reflect(v)
	s.Version = ""
	s.ID = ""

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %s: %w", targetName[T](), err)
	}
	return raw, nil
}

// SchemaJSON returns the record schema, suitable for embedding in a prompt.
func (e *Extractor[T]) SchemaJSON() string {
	return string(e.schemaJSON)
}

// Object extracts a single record. Any failure yields the zero T and a *Failure.
func (e *Extractor[T]) Object(text string) (T, error) {
	var zero T

	span, ok := e.locator.Locate(text, ShapeObject)
	if !ok {
		return zero, &Failure{Target: e.target, Reason: ReasonNoPayload, Detail: "no object found in response"}
	}

	// gojsonschema reads only the first value, so trailing bytes must be caught here.
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(span), &raw); err != nil {
		return zero, &Failure{Target: e.target, Reason: ReasonMalformed, Err: err}
	}

	record, reason, detail, err := e.decode(raw)
	if err != nil || reason != "" {
		return zero, &Failure{Target: e.target, Reason: reason, Detail: detail, Err: err}
	}
	return record, nil
}

// List extracts a sequence of records. The call fails only when no list can
// be located or parsed; invalid elements are dropped one by one.
func (e *Extractor[T]) List(text string) (ListResult[T], error) {
	span, ok := e.locator.Locate(text, ShapeList)
	if !ok {
		return ListResult[T]{}, &Failure{Target: e.target, Reason: ReasonNoPayload, Detail: "no list found in response"}
	}

	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elements); err != nil {
		return ListResult[T]{}, &Failure{Target: e.target, Reason: ReasonMalformed, Err: err}
	}

	result := ListResult[T]{Items: make([]T, 0, len(elements))}
	for i, element := range elements {
		record, reason, detail, err := e.decode(element)
		if reason != "" {
			if err != nil {
				detail = strings.TrimPrefix(detail+"; "+err.Error(), "; ")
			}
			result.Dropped = append(result.Dropped, ItemError{Index: i, Reason: reason, Detail: detail})
			continue
		}
		result.Items = append(result.Items, record)
	}

	return result, nil
}

// decode validates one JSON value against the schema and maps it onto T.
// A non-empty reason means the value was rejected.
func (e *Extractor[T]) decode(raw []byte) (T, Reason, string, error) {
	var record T

	result, err := e.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return record, ReasonMalformed, "", err
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return record, ReasonInvalid, strings.Join(errs, "; "), nil
	}

	if err := json.Unmarshal(raw, &record); err != nil {
		return record, ReasonInvalid, "", err
	}
	return record, "", "", nil
}

func targetName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
