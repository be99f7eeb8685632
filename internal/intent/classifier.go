package intent

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Scoring constants. These are empirically chosen; changing them changes
// observable classification results, so they are fixed.
const (
	keywordWeight = 0.3
	patternWeight = 0.5
	contextWeight = 0.2

	// scoreFloor is the minimum winning score; anything at or below it
	// falls back to the general query intent.
	scoreFloor = 0.1

	// confidenceCap keeps reported confidence below certainty.
	confidenceCap = 95

	// maxMessageLength truncates input before regex evaluation.
	maxMessageLength = 10000

	// maxSuggestions bounds Suggestions output.
	maxSuggestions = 5
)

// Classifier scores messages against a fixed intent pattern table.
// Thread-safe: all patterns are compiled at construction time and the
// table is never mutated.
type Classifier struct {
	patterns []pattern
}

// NewClassifier creates a classifier with the built-in intent table.
func NewClassifier() *Classifier {
	return &Classifier{patterns: buildPatterns()}
}

// buildPatterns returns the fixed intent table. Order matters for
// suggestion output and for deterministic tie-breaking (first wins).
func buildPatterns() []pattern {
	return []pattern{
		{
			intentType: TypeWorksheetGeneration,
			keywords:   []string{"worksheet", "activity sheet", "exercise", "practice", "homework", "assignment"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)create.*worksheet`),
				regexp.MustCompile(`(?i)generate.*activity`),
				regexp.MustCompile(`(?i)make.*exercise`),
				regexp.MustCompile(`(?i)design.*practice`),
			},
			weight: 1.0,
		},
		{
			intentType: TypeLessonPlanning,
			keywords:   []string{"lesson plan", "teaching plan", "curriculum", "schedule", "syllabus", "plan"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)lesson\s+plan`),
				regexp.MustCompile(`(?i)teaching\s+plan`),
				regexp.MustCompile(`(?i)plan.*lesson`),
				regexp.MustCompile(`(?i)curriculum.*design`),
			},
			weight: 1.0,
		},
		{
			intentType: TypeConceptExplanation,
			keywords:   []string{"explain", "what is", "how does", "definition", "meaning", "understand"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)explain.*concept`),
				regexp.MustCompile(`(?i)what\s+is`),
				regexp.MustCompile(`(?i)how\s+does`),
				regexp.MustCompile(`(?i)help.*understand`),
			},
			weight: 0.9,
		},
		{
			intentType: TypeQuizGeneration,
			keywords:   []string{"quiz", "test", "questions", "assessment", "exam", "evaluation"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)create.*quiz`),
				regexp.MustCompile(`(?i)generate.*questions`),
				regexp.MustCompile(`(?i)make.*test`),
				regexp.MustCompile(`(?i)assessment.*questions`),
			},
			weight: 1.0,
		},
		{
			intentType: TypeGradeAdaptation,
			keywords:   []string{"grade", "level", "age appropriate", "simplify", "adapt", "modify"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)for\s+grade`),
				regexp.MustCompile(`(?i)age\s+appropriate`),
				regexp.MustCompile(`(?i)simplify.*for`),
				regexp.MustCompile(`(?i)adapt.*level`),
			},
			weight: 0.8,
		},
		{
			intentType: TypeTranslation,
			keywords:   []string{"translate", "hindi", "english", "language", "convert"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)translate.*to`),
				regexp.MustCompile(`(?i)in\s+hindi`),
				regexp.MustCompile(`(?i)in\s+english`),
				regexp.MustCompile(`(?i)convert.*language`),
			},
			weight: 0.9,
		},
		{
			intentType: TypeResourceCreation,
			keywords:   []string{"resource", "material", "handout", "visual", "diagram", "chart"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)create.*resource`),
				regexp.MustCompile(`(?i)make.*material`),
				regexp.MustCompile(`(?i)design.*visual`),
				regexp.MustCompile(`(?i)generate.*diagram`),
			},
			weight: 0.8,
		},
		{
			intentType: TypeBehaviorManagement,
			keywords:   []string{"behavior", "discipline", "manage", "classroom management", "student behavior"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)manage.*behavior`),
				regexp.MustCompile(`(?i)classroom\s+management`),
				regexp.MustCompile(`(?i)student\s+discipline`),
				regexp.MustCompile(`(?i)behavior\s+problems`),
			},
			weight: 0.7,
		},
		{
			intentType: TypeParentCommunication,
			keywords:   []string{"parent", "communication", "family", "guardian", "meeting"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)parent.*communication`),
				regexp.MustCompile(`(?i)talk.*parents`),
				regexp.MustCompile(`(?i)family.*meeting`),
				regexp.MustCompile(`(?i)guardian.*discuss`),
			},
			weight: 0.7,
		},
		{
			intentType: TypeGeneralQuery,
			keywords:   []string{"help", "advice", "suggestion", "guidance", "support"},
			regexes: []*regexp.Regexp{
				regexp.MustCompile(`(?i)help.*me`),
				regexp.MustCompile(`(?i)need.*advice`),
				regexp.MustCompile(`(?i)suggest.*me`),
				regexp.MustCompile(`(?i)guidance.*on`),
			},
			weight: 0.5,
		},
	}
}

// Classify scores message against every pattern and returns the winning
// intent with confidence and extracted parameters. It never fails: when no
// pattern clears the floor the result is the general query intent.
func (c *Classifier) Classify(message string, subjects []string, grades []int) Intent {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if len(normalized) > maxMessageLength {
		normalized = normalized[:maxMessageLength]
	}

	bestType := TypeGeneralQuery
	bestScore := scoreFloor
	var bestKeywords []string

	for _, p := range c.patterns {
		score := 0.0
		var keywords []string

		for _, kw := range p.keywords {
			if strings.Contains(normalized, kw) {
				score += p.weight * keywordWeight
				keywords = append(keywords, kw)
			}
		}

		for _, re := range p.regexes {
			if re.MatchString(normalized) {
				score += p.weight * patternWeight
			}
		}

		score += contextScore(p.intentType, subjects, grades) * contextWeight

		if score > bestScore {
			bestScore = score
			bestType = p.intentType
			bestKeywords = keywords
		}
	}

	confidence := int(bestScore*100 + 0.5)
	if confidence > confidenceCap {
		confidence = confidenceCap
	}

	return Intent{
		Type:            bestType,
		Confidence:      confidence,
		MatchedKeywords: bestKeywords,
		Parameters:      extractParameters(bestType, normalized, subjects, grades),
	}
}

// contextScore returns the classroom-profile boost for an intent before the
// context weight is applied.
func contextScore(t Type, subjects []string, grades []int) float64 {
	score := 0.0

	if len(subjects) > 0 {
		switch t {
		case TypeWorksheetGeneration, TypeQuizGeneration:
			// Common across all subjects.
			score += 0.3
		case TypeConceptExplanation:
			if slices.Contains(subjects, "Science") || slices.Contains(subjects, "Mathematics") {
				score += 0.4
			}
		case TypeResourceCreation:
			if slices.Contains(subjects, "Art") || slices.Contains(subjects, "Science") {
				score += 0.3
			}
		}
	}

	if len(grades) > 0 {
		sum := 0
		for _, g := range grades {
			sum += g
		}
		avg := float64(sum) / float64(len(grades))

		switch t {
		case TypeBehaviorManagement:
			// More common for lower grades.
			if avg <= 3 {
				score += 0.2
			}
		case TypeConceptExplanation:
			score += 0.1
		case TypeGradeAdaptation:
			// Multi-grade classroom.
			if len(grades) > 1 {
				score += 0.4
			}
		}
	}

	return score
}

// Suggestions returns up to five "type: keyword" completions for a partial
// message, in pattern table order then keyword order.
func (c *Classifier) Suggestions(partial string, subjects []string) []string {
	normalized := strings.ToLower(strings.TrimSpace(partial))

	var suggestions []string
	for _, p := range c.patterns {
		for _, kw := range p.keywords {
			if strings.HasPrefix(kw, normalized) || strings.Contains(normalized, kw) {
				suggestions = append(suggestions, string(p.intentType)+": "+kw)
				if len(suggestions) == maxSuggestions {
					return suggestions
				}
			}
		}
	}
	return suggestions
}

// Types returns all intent types in table order.
func (c *Classifier) Types() []Type {
	types := make([]Type, len(c.patterns))
	for i, p := range c.patterns {
		types[i] = p.intentType
	}
	return types
}

var (
	countRe    = regexp.MustCompile(`(\d+)\s*(question|exercise|problem)`)
	gradeRe    = regexp.MustCompile(`grade\s*(\d+)`)
	durationRe = regexp.MustCompile(`(\d+)\s*(minute|hour|day)`)
)

// extractParameters pulls intent-specific values out of the normalized
// message. Keys with no match in the message stay absent.
func extractParameters(t Type, normalized string, subjects []string, grades []int) map[string]any {
	params := map[string]any{}

	if len(subjects) > 0 {
		params["subjects"] = subjects
	}
	if len(grades) > 0 {
		params["grades"] = grades
	}

	switch t {
	case TypeWorksheetGeneration, TypeQuizGeneration:
		if m := countRe.FindStringSubmatch(normalized); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				params["count"] = n
			}
		}
		switch {
		case strings.Contains(normalized, "easy") || strings.Contains(normalized, "simple"):
			params["difficulty"] = "easy"
		case strings.Contains(normalized, "hard") || strings.Contains(normalized, "difficult"):
			params["difficulty"] = "hard"
		default:
			params["difficulty"] = "medium"
		}

	case TypeTranslation:
		if strings.Contains(normalized, "hindi") {
			params["targetLanguage"] = "hi"
		} else if strings.Contains(normalized, "english") {
			params["targetLanguage"] = "en"
		}

	case TypeGradeAdaptation:
		if m := gradeRe.FindStringSubmatch(normalized); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				params["targetGrade"] = n
			}
		}

	case TypeLessonPlanning:
		if m := durationRe.FindStringSubmatch(normalized); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				params["duration"] = map[string]any{
					"value": n,
					"unit":  m[2],
				}
			}
		}
	}

	return params
}
