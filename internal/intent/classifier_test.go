package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_WorksheetExample(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("Create a worksheet for Grade 3 addition", []string{"Mathematics"}, []int{3})

	assert.Equal(t, TypeWorksheetGeneration, got.Type)
	assert.Contains(t, got.MatchedKeywords, "worksheet")
	assert.Equal(t, "medium", got.Parameters["difficulty"])
	assert.Greater(t, got.Confidence, 50)
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier()

	first := c.Classify("plan a 40 minute lesson on fractions", []string{"Mathematics"}, []int{4, 5})
	second := c.Classify("plan a 40 minute lesson on fractions", []string{"Mathematics"}, []int{4, 5})

	assert.Equal(t, first, second)
}

func TestClassify_ConfidenceBounds(t *testing.T) {
	c := NewClassifier()

	inputs := []string{
		"",
		"create a worksheet with practice exercises and homework assignments",
		"translate this lesson plan quiz worksheet to hindi for grade 2",
		"%%% !!! ???",
	}
	for _, in := range inputs {
		got := c.Classify(in, []string{"Mathematics", "Science"}, []int{1, 2, 3})
		assert.GreaterOrEqual(t, got.Confidence, 0, "input %q", in)
		assert.LessOrEqual(t, got.Confidence, 95, "input %q", in)
	}
}

func TestClassify_EmptyFallsBack(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("", nil, nil)

	assert.Equal(t, TypeGeneralQuery, got.Type)
	assert.LessOrEqual(t, got.Confidence, 10)
	assert.Empty(t, got.MatchedKeywords)
}

func TestClassify_Parameters(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name    string
		message string
		check   func(t *testing.T, got Intent)
	}{
		{
			name:    "question count and difficulty",
			message: "create an easy quiz with 10 questions",
			check: func(t *testing.T, got Intent) {
				assert.Equal(t, TypeQuizGeneration, got.Type)
				assert.Equal(t, 10, got.Parameters["count"])
				assert.Equal(t, "easy", got.Parameters["difficulty"])
			},
		},
		{
			name:    "target language",
			message: "translate the worksheet instructions to hindi",
			check: func(t *testing.T, got Intent) {
				assert.Equal(t, "hi", got.Parameters["targetLanguage"])
			},
		},
		{
			name:    "target grade",
			message: "simplify this passage for grade 2 level readers please adapt",
			check: func(t *testing.T, got Intent) {
				assert.Equal(t, TypeGradeAdaptation, got.Type)
				assert.Equal(t, 2, got.Parameters["targetGrade"])
			},
		},
		{
			name:    "lesson duration",
			message: "make a lesson plan for a 40 minute class",
			check: func(t *testing.T, got Intent) {
				assert.Equal(t, TypeLessonPlanning, got.Type)
				dur, ok := got.Parameters["duration"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, 40, dur["value"])
				assert.Equal(t, "minute", dur["unit"])
			},
		},
		{
			name:    "missing count stays absent",
			message: "create a worksheet",
			check: func(t *testing.T, got Intent) {
				_, ok := got.Parameters["count"]
				assert.False(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, c.Classify(tt.message, nil, nil))
		})
	}
}

func TestClassify_MultiGradeBoostsAdaptation(t *testing.T) {
	c := NewClassifier()

	single := c.Classify("adapt this for my class", nil, []int{3})
	multi := c.Classify("adapt this for my class", nil, []int{3, 4, 5})

	assert.Equal(t, TypeGradeAdaptation, multi.Type)
	assert.GreaterOrEqual(t, multi.Confidence, single.Confidence)
}

func TestSuggestions(t *testing.T) {
	c := NewClassifier()

	got := c.Suggestions("work", nil)
	require.NotEmpty(t, got)
	assert.Equal(t, "worksheetGeneration: worksheet", got[0])
	assert.LessOrEqual(t, len(got), 5)

	// Empty partial matches every keyword prefix; capped at five.
	all := c.Suggestions("", nil)
	assert.Len(t, all, 5)
}

func TestTypes_TableOrder(t *testing.T) {
	c := NewClassifier()

	types := c.Types()
	require.Len(t, types, 10)
	assert.Equal(t, TypeWorksheetGeneration, types[0])
	assert.Equal(t, TypeGeneralQuery, types[9])
}
