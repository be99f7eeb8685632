package intent

import "regexp"

// Type identifies the classified purpose of a request.
type Type string

const (
	TypeWorksheetGeneration Type = "worksheetGeneration"
	TypeLessonPlanning      Type = "lessonPlanning"
	TypeConceptExplanation  Type = "conceptExplanation"
	TypeQuizGeneration      Type = "quizGeneration"
	TypeGradeAdaptation     Type = "gradeAdaptation"
	TypeTranslation         Type = "translation"
	TypeResourceCreation    Type = "resourceCreation"
	TypeBehaviorManagement  Type = "behaviorManagement"
	TypeParentCommunication Type = "parentCommunication"
	TypeGeneralQuery        Type = "generalQuery"
)

// Intent is the classifier output for one message.
type Intent struct {
	// Type is the best-matching intent.
	Type Type `json:"type"`

	// Confidence is a 0-100 score, capped at 95: the scoring is
	// heuristic and never certain.
	Confidence int `json:"confidence"`

	// MatchedKeywords are the keywords of the winning pattern found in
	// the message, in pattern table order.
	MatchedKeywords []string `json:"matched_keywords"`

	// Parameters holds intent-specific extracted values (count,
	// difficulty, target language, target grade, duration). Keys for
	// values that were not found in the message are absent.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// pattern is one row of the fixed intent table: keywords matched as
// case-insensitive substrings, regexes matched at most once each, and a
// weight scaling both contributions.
type pattern struct {
	intentType Type
	keywords   []string
	regexes    []*regexp.Regexp
	weight     float64
}
