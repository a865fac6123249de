package feedback

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema describes the JSON a generative call must return. Required fields
// must be present and non-null; everything else is optional.
type Schema struct {
	Name        string
	Type        Type
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Minimum     *float64
	Maximum     *float64
	MinItems    int

	once       sync.Once
	compiled   *jsonschema.Schema
	compileErr error
}

// ErrSchemaViolation matches every *SchemaError via errors.Is.
var ErrSchemaViolation = errors.New("schema violation")

// SchemaError reports a generative response that is not valid JSON or does
// not satisfy its schema.
type SchemaError struct {
	Schema string
	Path   string
	Reason string
	Err    error
	// Record is set when the response matched the schema but a decoded value
	// failed a record check.
	Record bool
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema violation")
	if e.Schema != "" {
		b.WriteString(" in ")
		b.WriteString(e.Schema)
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Is(target error) bool { return target == ErrSchemaViolation }

func Object(properties map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: properties, Required: required}
}

func Array(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

func String(description string) *Schema {
	return &Schema{Type: TypeString, Description: description}
}

func Number(description string) *Schema {
	return &Schema{Type: TypeNumber, Description: description}
}

func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// Between sets an inclusive numeric range and returns the schema.
func (s *Schema) Between(lo, hi float64) *Schema {
	s.Minimum = &lo
	s.Maximum = &hi
	return s
}

// AtLeast sets a lower bound for numbers, or a minimum length for arrays.
func (s *Schema) AtLeast(lo float64) *Schema {
	if s.Type == TypeArray {
		s.MinItems = int(lo)
		return s
	}
	s.Minimum = &lo
	return s
}

func (s *Schema) Named(name string) *Schema {
	s.Name = name
	return s
}

// Map renders the schema in the strict structured-output dialect: every
// object lists all of its keys as required, disallows additional properties
// and expresses optional fields as nullable.
func (s *Schema) Map() map[string]any {
	return s.render(true, true)
}

// render builds the JSON Schema document. In the strict dialect every key is
// required; otherwise only s.Required is, and extra keys are tolerated.
func (s *Schema) render(required, strict bool) map[string]any {
	out := map[string]any{}
	if required {
		out["type"] = string(s.Type)
	} else {
		out["type"] = []string{string(s.Type), "null"}
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}

	switch s.Type {
	case TypeObject:
		keys := sortedKeys(s.Properties)
		props := make(map[string]any, len(keys))
		req := make(map[string]bool, len(s.Required))
		for _, k := range s.Required {
			req[k] = true
		}
		for _, k := range keys {
			props[k] = s.Properties[k].render(req[k], strict)
		}
		out["properties"] = props
		if strict {
			out["required"] = keys
			out["additionalProperties"] = false
		} else if len(s.Required) > 0 {
			out["required"] = s.Required
		}
	case TypeArray:
		if s.Items != nil {
			out["items"] = s.Items.render(true, strict)
		}
		if s.MinItems > 0 {
			out["minItems"] = s.MinItems
		}
	}
	return out
}

// compile turns the lenient rendering into a validator. Responses may omit
// optional keys or add unknown ones; required keys must be present and
// non-null.
func (s *Schema) compile() (*jsonschema.Schema, error) {
	s.once.Do(func() {
		doc, err := json.Marshal(s.render(true, false))
		if err != nil {
			s.compileErr = err
			return
		}
		parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
		if err != nil {
			s.compileErr = err
			return
		}
		name := s.Name
		if name == "" {
			name = "anonymous"
		}
		url := "https://commsense.local/schemas/" + name + ".json"

		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, parsed); err != nil {
			s.compileErr = err
			return
		}
		s.compiled, s.compileErr = c.Compile(url)
	})
	return s.compiled, s.compileErr
}

// Validate parses raw and checks it against the schema. The returned error is
// always a *SchemaError.
func (s *Schema) Validate(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return &SchemaError{Schema: s.Name, Reason: "invalid JSON", Err: err}
	}
	if dec.More() {
		return &SchemaError{Schema: s.Name, Reason: "trailing data after JSON value"}
	}

	compiled, err := s.compile()
	if err != nil {
		return &SchemaError{Schema: s.Name, Reason: "compile schema", Err: err}
	}
	err = compiled.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &SchemaError{Schema: s.Name, Reason: "validate", Err: err}
	}
	path, reason := firstViolation(ve)
	return &SchemaError{Schema: s.Name, Path: path, Reason: reason}
}

var printer = message.NewPrinter(language.English)

// firstViolation picks the leaf failure with the smallest instance path so
// the report does not depend on map iteration order inside the validator.
func firstViolation(root *jsonschema.ValidationError) (path, reason string) {
	var leaves []*jsonschema.ValidationError
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			leaves = append(leaves, e)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(root)

	type violation struct{ path, reason string }
	found := make([]violation, 0, len(leaves))
	for _, leaf := range leaves {
		loc := leaf.InstanceLocation
		msg := leaf.ErrorKind.LocalizedString(printer)
		if req, ok := leaf.ErrorKind.(*kind.Required); ok && len(req.Missing) > 0 {
			loc = append(append([]string(nil), loc...), req.Missing[0])
			msg = "missing required field"
		}
		found = append(found, violation{instancePath(loc), msg})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].path < found[j].path })
	return found[0].path, found[0].reason
}

// instancePath renders a location like ["items", "0", "time"] as
// $.items[0].time.
func instancePath(loc []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, seg := range loc {
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		b.WriteString("." + seg)
	}
	return b.String()
}

// Decode validates raw against s and then unmarshals it into out.
func Decode(raw []byte, s *Schema, out any) error {
	if err := s.Validate(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &SchemaError{Schema: s.Name, Reason: "decode", Err: err}
	}
	return nil
}

func sortedKeys(m map[string]*Schema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
