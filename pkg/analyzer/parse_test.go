package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/guidelint/pkg/filereader"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

func TestParseResponse_FencedBlock(t *testing.T) {
	t.Parallel()

	text := "Here is my analysis.\n```json\n" +
		`{"results": [{"file": "a.py", "violations": [{"type": "anti-pattern", "message": "global state", "line": 4}]}]}` +
		"\n```\nLet me know if you need more."

	results, err := ParseResponse(text)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "a.py", results[0].File)
	require.Len(t, results[0].Violations, 1)
	assert.Equal(t, model.TypeAntiPattern, results[0].Violations[0].Type)
	require.NotNil(t, results[0].Violations[0].Line)
	assert.Equal(t, 4, *results[0].Violations[0].Line)
}

func TestParseResponse_BareObject(t *testing.T) {
	t.Parallel()

	text := `Sure: {"results": [{"file": "a.go", "violations": []}, {"file": "b.go"}]} done`

	results, err := ParseResponse(text)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Clean())
	assert.NotNil(t, results[1].Violations)
}

func TestParseResponse_NullLine(t *testing.T) {
	t.Parallel()

	results, err := ParseResponse(`{"results": [{"file": "x", "violations": [{"type": "missing-pattern", "message": "m", "line": null}]}]}`)
	require.NoError(t, err)

	assert.Nil(t, results[0].Violations[0].Line)
}

func TestParseResponse_NoJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseResponse("I could not analyze these files.")

	require.ErrorIs(t, err, ErrNoJSON)
}

func TestParseResponse_Malformed(t *testing.T) {
	t.Parallel()

	_, err := ParseResponse(`{"results": [ {"file": "a.go", ]}`)

	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseResponse_SchemaMismatch(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"verdicts": []}`,
		`{"results": [{"violations": []}]}`,
		`{"results": [{"file": "a", "violations": [{"type": "x", "message": "m", "line": "seven"}]}]}`,
	}

	for _, c := range cases {
		_, err := ParseResponse(c)
		require.ErrorIs(t, err, ErrInvalidResponse, c)
	}
}

func TestParseResponse_BadRecordKeepsTheRest(t *testing.T) {
	t.Parallel()

	text := `{"results": [
		{"file": "a.go", "violations": [{"type": "anti-pattern", "message": "m", "line": "12"}]},
		{"file": "b.go", "violations": [{"type": "anti-pattern", "message": "n", "line": 3}]},
		{"file": "c.go", "violations": [{"type": "anti-pattern", "message": 7}]},
		{"file": "d.go", "violations": []}
	]}`

	results, err := ParseResponse(text)

	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.Contains(t, err.Error(), "dropped 1 of 4 records")
	assert.Contains(t, err.Error(), "results[2]")

	require.Len(t, results, 3)
	assert.Equal(t, "a.go", results[0].File)
	require.NotNil(t, results[0].Violations[0].Line, "quoted line numbers are accepted")
	assert.Equal(t, 12, *results[0].Violations[0].Line)
	assert.Equal(t, "b.go", results[1].File)
	assert.Equal(t, 3, *results[1].Violations[0].Line)
	assert.Equal(t, "d.go", results[2].File)
}

func TestParseResponse_QuotedLineAlone(t *testing.T) {
	t.Parallel()

	results, err := ParseResponse(`{"results": [
		{"file": "a.go", "violations": [{"type": "anti-pattern", "message": "m", "line": "12"}]},
		{"file": "b.go", "violations": []},
		{"file": "c.go", "violations": []}
	]}`)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, 12, *results[0].Violations[0].Line)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt("Use small functions.", []filereader.Document{
		{Path: "a.go", Content: "package a"},
		{Path: `we"ird.go`, Content: "package w"},
	})

	assert.Contains(t, prompt, "<guidelines>\nUse small functions.\n</guidelines>")
	assert.Contains(t, prompt, "<file path=\"a.go\">\npackage a\n  </file>")
	assert.Contains(t, prompt, `<file path="we&quot;ird.go">`)
	assert.Contains(t, prompt, "missing-pattern|principle-violation|anti-pattern")
	assert.Less(t, strings.Index(prompt, "a.go"), strings.Index(prompt, "we&quot;ird.go"))
}
