package results

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"eval-batcher/internal/core/rubric"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON    = errors.New("record is not valid json")
	ErrRequestFailed  = errors.New("batch request failed")
	ErrMissingContent = errors.New("response has no message content")
	ErrMissingField   = errors.New("required field missing")
	ErrFieldName      = errors.New("field name does not match the schema")
	ErrFieldType      = errors.New("field has the wrong type")
	ErrOutOfRange     = errors.New("score out of range")
)

// Evaluation is one validated answer. Values of this type only come out of a
// successful Validate call.
type Evaluation struct {
	CustomID               string
	Name                   string
	StrengthsAndWeaknesses int
	EmotionsRecognition    int
	IdentityValue          int
}

func (e Evaluation) Row() []string {
	return []string{
		e.Name,
		strconv.Itoa(e.StrengthsAndWeaknesses),
		strconv.Itoa(e.EmotionsRecognition),
		strconv.Itoa(e.IdentityValue),
	}
}

// RecordError describes a record that was dropped.
type RecordError struct {
	Index    int
	CustomID string
	Err      error
}

func (e RecordError) Error() string {
	if e.CustomID != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.CustomID, e.Err)
	}
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e RecordError) Unwrap() error { return e.Err }

// Validator checks answers against a rubric: the name field must be a
// non-empty string and every dimension field a JSON integer inside the
// rubric's score range. Field names match exactly, case included.
type Validator struct {
	validate    *validator.Validate
	nameField   string
	scoreFields [3]string
	scoreRule   string
	minScore    int
	maxScore    int
}

// NewValidator builds a Validator for r. The rubric's dimensions fill the
// Evaluation scores in order, so r must have exactly three.
func NewValidator(r *rubric.Rubric) (*Validator, error) {
	if len(r.Dimensions) != 3 {
		return nil, fmt.Errorf("rubric %q has %d dimensions, evaluations have 3", r.Version, len(r.Dimensions))
	}

	v := &Validator{
		validate:  validator.New(),
		nameField: r.NameField,
		scoreRule: fmt.Sprintf("min=%d,max=%d", r.MinScore, r.MaxScore),
		minScore:  r.MinScore,
		maxScore:  r.MaxScore,
	}
	for i, d := range r.Dimensions {
		v.scoreFields[i] = d.Field
	}
	return v, nil
}

// Validate parses a result payload, either one JSON value per line or a
// single JSON array, and returns the records that satisfy the schema in
// input order. Records that fail are logged and reported in rejected; they
// never abort the run. Duplicates are kept.
func (v *Validator) Validate(payload []byte) (accepted []Evaluation, rejected []RecordError) {
	for i, rec := range splitRecords(payload) {
		eval, customID, err := v.validateRecord(rec)
		if err != nil {
			re := RecordError{Index: i, CustomID: customID, Err: err}
			slog.Warn("dropping invalid record", "index", i, "custom_id", customID, "error", err)
			rejected = append(rejected, re)
			continue
		}
		accepted = append(accepted, eval)
	}

	slog.Info("validated results", "accepted", len(accepted), "rejected", len(rejected))

	return accepted, rejected
}

// ValidateRecord checks a single bare evaluation object or batch output line.
func (v *Validator) ValidateRecord(record []byte) (Evaluation, error) {
	eval, _, err := v.validateRecord(record)
	return eval, err
}

func (v *Validator) validateRecord(record []byte) (Evaluation, string, error) {
	if !gjson.ValidBytes(record) {
		return Evaluation{}, "", ErrInvalidJSON
	}

	doc := gjson.ParseBytes(record)
	customID := doc.Get("custom_id").String()

	body := record
	if isEnvelope(doc) {
		content, err := unwrapEnvelope(doc)
		if err != nil {
			return Evaluation{}, customID, err
		}
		body = []byte(content)
	}

	fields, err := v.decodeFields(body)
	if err != nil {
		return Evaluation{}, customID, err
	}

	name := fields[v.nameField]
	if name.Type != gjson.String {
		return Evaluation{}, customID, fmt.Errorf("%w: %s must be a string", ErrFieldType, v.nameField)
	}
	if err := v.validate.Var(name.String(), "required,min=1"); err != nil {
		return Evaluation{}, customID, fmt.Errorf("%w: %s is empty", ErrMissingField, v.nameField)
	}

	var scores [3]int
	for i, field := range v.scoreFields {
		n, err := v.score(field, fields[field])
		if err != nil {
			return Evaluation{}, customID, err
		}
		scores[i] = n
	}

	return Evaluation{
		CustomID:               customID,
		Name:                   name.String(),
		StrengthsAndWeaknesses: scores[0],
		EmotionsRecognition:    scores[1],
		IdentityValue:          scores[2],
	}, customID, nil
}

// decodeFields reads the schema fields of an evaluation object by exact key.
// A key that differs from a schema field only in case, or a schema field that
// appears twice, rejects the record. Other keys are ignored.
func (v *Validator) decodeFields(body []byte) (map[string]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: evaluation is not an object", ErrFieldType)
	}

	schema := append([]string{v.nameField}, v.scoreFields[:]...)
	fields := make(map[string]gjson.Result, len(schema))

	var err error
	doc.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		for _, f := range schema {
			switch {
			case k == f:
				if _, dup := fields[f]; dup {
					err = fmt.Errorf("%w: %s appears twice", ErrFieldName, f)
					return false
				}
				fields[f] = value
			case strings.EqualFold(k, f):
				err = fmt.Errorf("%w: got %q, want %q", ErrFieldName, k, f)
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	for _, f := range schema {
		if value, ok := fields[f]; !ok || value.Type == gjson.Null {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	return fields, nil
}

// score accepts only integer literals: 2.0, 2e0 and "2" are rejected.
func (v *Validator) score(field string, value gjson.Result) (int, error) {
	if value.Type != gjson.Number {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrFieldType, field)
	}
	n, err := strconv.Atoi(value.Raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %s", ErrFieldType, field, value.Raw)
	}
	if err := v.validate.Var(n, v.scoreRule); err != nil {
		return 0, fmt.Errorf("%w: %s=%d not in [%d, %d]", ErrOutOfRange, field, n, v.minScore, v.maxScore)
	}
	return n, nil
}

// isEnvelope reports whether doc is a batch output line rather than a bare
// evaluation object.
func isEnvelope(doc gjson.Result) bool {
	return doc.IsObject() && doc.Get("custom_id").Exists() &&
		(doc.Get("response").Exists() || doc.Get("error").Exists())
}

func unwrapEnvelope(doc gjson.Result) (string, error) {
	if e := doc.Get("error"); e.Exists() && e.Type != gjson.Null {
		return "", fmt.Errorf("%w: %s", ErrRequestFailed, e.Get("message").String())
	}

	if code := doc.Get("response.status_code"); code.Exists() && code.Int() != http.StatusOK {
		msg := doc.Get("response.body.error.message").String()
		return "", fmt.Errorf("%w: status %d %s", ErrRequestFailed, code.Int(), msg)
	}

	content := doc.Get("response.body.choices.0.message.content")
	if !content.Exists() || content.Type != gjson.String {
		return "", ErrMissingContent
	}
	return content.String(), nil
}

// splitRecords returns the individual records of a JSON array payload or of a
// newline-delimited payload. Blank lines are skipped.
func splitRecords(payload []byte) [][]byte {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' && gjson.ValidBytes(trimmed) {
		var out [][]byte
		gjson.ParseBytes(trimmed).ForEach(func(_, value gjson.Result) bool {
			out = append(out, []byte(value.Raw))
			return true
		})
		return out
	}

	var out [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out = append(out, bytes.Clone(line))
	}
	if err := scanner.Err(); err != nil {
		slog.Error("error reading result payload, remaining records skipped", "records_read", len(out), "error", err)
	}
	return out
}
