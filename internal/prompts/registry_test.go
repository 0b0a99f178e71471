package prompts

import (
	"testing"

	"artyats/internal/config"
	"artyats/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestRegistryNamesMatchOperations(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	ops := append([]string(nil), config.Operations...)
	assert.ElementsMatch(t, ops, reg.Names())
}

func TestRegistryGetUnknown(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Get("cover-letter")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestRegistryReturnsCopies(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	first, err := reg.Get(NameScore)
	require.NoError(t, err)
	first.OutputSchema.Required = append(first.OutputSchema.Required, "extra")
	first.OutputSchema.Properties["atsPassScore"].Maximum = genai.Ptr(5.0)
	first.Instructions = "changed"

	second, err := reg.Get(NameScore)
	require.NoError(t, err)
	assert.NotContains(t, second.OutputSchema.Required, "extra")
	assert.Equal(t, 100.0, *second.OutputSchema.Properties["atsPassScore"].Maximum)
	assert.NotEqual(t, "changed", second.Instructions)
}

func TestRegistryOverrides(t *testing.T) {
	reg, err := NewRegistry(Override{Name: NameChat, Instructions: "Q: {{.question}}", SystemPrompt: "custom persona"})
	require.NoError(t, err)

	tmpl, err := reg.Get(NameChat)
	require.NoError(t, err)
	assert.Equal(t, "custom persona", tmpl.SystemPrompt)

	out, err := tmpl.Render(map[string]any{"question": "why?"})
	require.NoError(t, err)
	assert.Equal(t, "Q: why?", out)

	_, err = NewRegistry(Override{Name: "nope", Instructions: "x"})
	assert.Error(t, err)

	_, err = NewRegistry(Override{Name: NameChat, Instructions: "{{.question"})
	assert.Error(t, err)
}

func TestRenderMissingField(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	tmpl, err := reg.Get(NameRationale)
	require.NoError(t, err)

	_, err = tmpl.Render(map[string]any{"resumeText": "r"})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSuggestRenderEmploymentLock(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	tmpl, err := reg.Get(NameSuggest)
	require.NoError(t, err)

	input := map[string]any{
		"resumeText":          "5 years Python",
		"jobDescriptionText":  "Senior Python Engineer",
		"atsPassScore":        70.0,
		"humanRecruiterScore": 60.0,
		"userInfo":            "Looking for a new role.",
		"employmentStatus":    "employed",
		"candidateName":       "Sam",
	}
	out, err := tmpl.Render(input)
	require.NoError(t, err)
	assert.Contains(t, out, "Do not suggest any job title change")
	assert.Contains(t, out, "Help Sam")

	input["employmentStatus"] = "student"
	out, err = tmpl.Render(input)
	require.NoError(t, err)
	assert.NotContains(t, out, "Do not suggest any job title change")
}

func TestChatRenderIncludesHistory(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	tmpl, err := reg.Get(NameChat)
	require.NoError(t, err)

	out, err := tmpl.Render(map[string]any{
		"resumeText":         "resume body",
		"jobDescriptionText": "jd body",
		"question":           "second question",
		"history": []any{
			map[string]any{"role": "user", "content": "first question"},
			map[string]any{"role": "assistant", "content": "first answer"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "user: first question\nassistant: first answer")
	assert.Contains(t, out, `"second question"`)
}

func TestResponseSchemaDropsLengths(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	tmpl, err := reg.Get(NameRevise)
	require.NoError(t, err)

	require.NotNil(t, tmpl.OutputSchema.Properties["revisedSummary"].MinLength)
	resp := tmpl.ResponseSchema()
	assert.Nil(t, resp.Properties["revisedSummary"].MinLength)
	assert.Nil(t, resp.Properties["enhancedKeyTerms"].Items.MinLength)
	assert.Equal(t, tmpl.OutputSchema.Required, resp.Required)
}

func TestFeedbackSafetySettings(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	tmpl, err := reg.Get(NameFeedback)
	require.NoError(t, err)

	byCategory := map[genai.HarmCategory]genai.HarmBlockThreshold{}
	for _, s := range tmpl.SafetySettings {
		byCategory[s.Category] = s.Threshold
	}
	assert.Equal(t, genai.HarmBlockThresholdBlockOnlyHigh, byCategory[genai.HarmCategoryHateSpeech])
	assert.Equal(t, genai.HarmBlockThresholdBlockNone, byCategory[genai.HarmCategoryDangerousContent])
	assert.Equal(t, genai.HarmBlockThresholdBlockMediumAndAbove, byCategory[genai.HarmCategoryHarassment])
	assert.Equal(t, genai.HarmBlockThresholdBlockLowAndAbove, byCategory[genai.HarmCategorySexuallyExplicit])
}
