package prompt

import (
	"strings"
	"testing"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refusal = "I'm sorry, this information is not in my notes."

func match(page int, text string) commonModels.Match {
	return commonModels.Match{Chunk: commonModels.DocChunk{PageNum: page, Chunk: text}}
}

func TestRenderDefault(t *testing.T) {
	r, err := New("", refusal)
	require.NoError(t, err)

	out, err := r.Render([]commonModels.Match{
		match(2, "The transaction code for creating a purchase order is ME21N."),
		match(1, "SE38 opens the ABAP editor."),
	}, "What is ME21N?  ")
	require.NoError(t, err)

	assert.Contains(t, out, "[page 2]\nThe transaction code for creating a purchase order is ME21N.")
	assert.Contains(t, out, "Question: What is ME21N?  \n", "question must be verbatim")
	assert.Contains(t, out, refusal)
	assert.Contains(t, out, "ONLY")

	// retrieval order is kept
	assert.Less(t, strings.Index(out, "ME21N."), strings.Index(out, "SE38"))
	assert.Contains(t, out, "ME21N."+Separator+"[page 1]")
}

func TestRenderIsDeterministic(t *testing.T) {
	r, err := New("", refusal)
	require.NoError(t, err)
	matches := []commonModels.Match{match(1, "a"), match(3, "b")}

	first, err := r.Render(matches, "q")
	require.NoError(t, err)
	second, err := r.Render(matches, "q")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRenderNoMatches(t *testing.T) {
	r, err := New("", refusal)
	require.NoError(t, err)

	out, err := r.Render(nil, "anything?")
	require.NoError(t, err)
	assert.Contains(t, out, "Context:\n\n\nQuestion: anything?")
}

func TestCustomTemplate(t *testing.T) {
	r, err := New("C={{.Context}} Q={{.Question}} R={{.Refusal}}", "nope")
	require.NoError(t, err)

	out, err := r.Render([]commonModels.Match{match(4, "text")}, "why")
	require.NoError(t, err)
	assert.Equal(t, "C=[page 4]\ntext Q=why R=nope", out)
	assert.Equal(t, "nope", r.Refusal())
}

func TestTemplateValidation(t *testing.T) {
	_, err := New("{{.Question}} only", refusal)
	assert.Error(t, err)

	_, err = New("{{.Context}} {{.Question}} {{", refusal)
	assert.Error(t, err)
}
