package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// Response parsing errors. Files without a usable record get no verdict.
var (
	ErrNoJSON          = errors.New("response contains no JSON object")
	ErrInvalidResponse = errors.New("response does not match the result schema")
)

var (
	fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	bareObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// envelopeSchema checks the response shape; each record is checked against
// recordSchema on its own so one bad record does not cost the others.
const envelopeSchema = `{
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {"type": "array"}
  }
}`

const recordSchema = `{
  "type": "object",
  "required": ["file"],
  "properties": {
    "file": {"type": "string", "minLength": 1},
    "violations": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type", "message"],
        "properties": {
          "type": {"type": "string"},
          "message": {"type": "string"},
          "line": {"type": ["integer", "string", "null"], "pattern": "^[0-9]+$"}
        }
      }
    }
  }
}`

type schemas struct {
	envelope *gojsonschema.Schema
	record   *gojsonschema.Schema
}

var compiledSchemas = sync.OnceValues(func() (schemas, error) {
	envelope, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(envelopeSchema))
	if err != nil {
		return schemas{}, err
	}

	record, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(recordSchema))
	if err != nil {
		return schemas{}, err
	}

	return schemas{envelope: envelope, record: record}, nil
})

type resultEnvelope struct {
	Results []json.RawMessage `json:"results"`
}

// rawRecord keeps line undecoded: services sometimes quote line numbers.
type rawRecord struct {
	File       string `json:"file"`
	Violations []struct {
		Type    string          `json:"type"`
		Message string          `json:"message"`
		Line    json.RawMessage `json:"line"`
	} `json:"violations"`
}

// ExtractJSON returns the JSON payload of a response: the first ```json
// fenced block if any, otherwise the span from the first '{' to the last '}'.
func ExtractJSON(text string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}

	if m := bareObject.FindString(text); m != "" {
		return m, nil
	}

	return "", ErrNoJSON
}

// ParseResponse extracts and validates the verdicts in a response. Records
// are validated one by one: those that fail are dropped and described by an
// error wrapping ErrInvalidResponse, returned together with the records that
// passed. A payload that is not a results envelope yields no results.
func ParseResponse(text string) ([]model.FileResult, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	sc, err := compiledSchemas()
	if err != nil {
		return nil, fmt.Errorf("compile result schema: %w", err)
	}

	err = validate(sc.envelope, []byte(payload))
	if err != nil {
		return nil, err
	}

	var env resultEnvelope

	err = json.Unmarshal([]byte(payload), &env)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	results := make([]model.FileResult, 0, len(env.Results))

	var problems []string

	for i, raw := range env.Results {
		res, recErr := parseRecord(sc.record, raw)
		if recErr != nil {
			problems = append(problems, fmt.Sprintf("results[%d]: %v", i, recErr))

			continue
		}

		results = append(results, res)
	}

	if len(problems) > 0 {
		return results, fmt.Errorf("%w: dropped %d of %d records: %s",
			ErrInvalidResponse, len(problems), len(env.Results), strings.Join(problems, "; "))
	}

	return results, nil
}

func parseRecord(schema *gojsonschema.Schema, raw json.RawMessage) (model.FileResult, error) {
	err := validate(schema, raw)
	if err != nil {
		return model.FileResult{}, err
	}

	var rec rawRecord

	err = json.Unmarshal(raw, &rec)
	if err != nil {
		return model.FileResult{}, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	violations := make([]model.Violation, 0, len(rec.Violations))

	for _, v := range rec.Violations {
		line, lineErr := parseLine(v.Line)
		if lineErr != nil {
			return model.FileResult{}, lineErr
		}

		violations = append(violations, model.Violation{Type: v.Type, Message: v.Message, Line: line})
	}

	return model.NewFileResult(rec.File, violations), nil
}

// parseLine accepts a JSON integer, a quoted decimal integer or null.
func parseLine(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil //nolint:nilnil // absent line is not an error
	}

	var n int

	err := json.Unmarshal(raw, &n)
	if err == nil {
		return &n, nil
	}

	var quoted string

	err = json.Unmarshal(raw, &quoted)
	if err != nil {
		return nil, fmt.Errorf("%w: line %s", ErrInvalidResponse, raw)
	}

	n, err = strconv.Atoi(quoted)
	if err != nil {
		return nil, fmt.Errorf("%w: line %q: %w", ErrInvalidResponse, quoted, err)
	}

	return &n, nil
}

func validate(schema *gojsonschema.Schema, doc []byte) error {
	check, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if check.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(check.Errors()))
	for _, e := range check.Errors() {
		msgs = append(msgs, e.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(msgs, "; "))
}
