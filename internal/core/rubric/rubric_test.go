package rubric

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "self-awareness/v1", r.Version)
	assert.Equal(t, "Name", r.NameField)
	require.Len(t, r.Dimensions, 3)
	assert.Equal(t, "Strengths_and_Weaknesses", r.Dimensions[0].Field)
	assert.Equal(t, "Emotions_Recognition", r.Dimensions[1].Field)
	assert.Equal(t, "Identity_Value", r.Dimensions[2].Field)
	assert.Equal(t, 0, r.MinScore)
	assert.Equal(t, 3, r.MaxScore)

	assert.True(t, strings.HasPrefix(r.SystemPrompt, "You are an evaluator who reviews the self-awareness content"))
	assert.Contains(t, r.SystemPrompt, "base64-encoded image. Assess the image content")
	assert.NotContains(t, r.SystemPrompt, "\n")

	assert.True(t, strings.HasPrefix(r.Instruction, "Evaluate the self-awareness skills of the author"))
	assert.Contains(t, r.Instruction, "\n  \"Strengths_and_Weaknesses\": <score>,\n")
	assert.True(t, strings.HasSuffix(r.Instruction, "Replace <score> with an integer value between 0 and 3."))
}

func TestColumns(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Strengths and Weaknesses", "Emotions Recognition", "Identity Value"}, r.Columns())
}
