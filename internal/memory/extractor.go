package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/teachd/internal/intent"
)

// joinInts renders a grade list as "3, 4, 5".
func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

// extracted is a fact candidate before it becomes a stored item.
type extracted struct {
	content  string
	itemType ItemType
}

// extractFacts derives memory candidates from a classified message. The
// subjects and grades come from the teacher's classroom profile, not the
// message itself.
func extractFacts(message string, in intent.Intent, subjects []string, grades []int) []extracted {
	var facts []extracted

	if len(subjects) > 0 {
		facts = append(facts, extracted{
			content:  fmt.Sprintf("Teacher works with subjects: %s", strings.Join(subjects, ", ")),
			itemType: TypePreference,
		})
	}
	if len(grades) > 0 {
		facts = append(facts, extracted{
			content:  fmt.Sprintf("Teacher handles grades: %s", joinInts(grades)),
			itemType: TypePreference,
		})
	}

	// Always record the request itself so later turns can learn from it.
	facts = append(facts, extracted{
		content:  fmt.Sprintf("User requested %s with confidence %d%%", in.Type, in.Confidence),
		itemType: TypeContext,
	})

	switch in.Type {
	case intent.TypeWorksheetGeneration:
		facts = append(facts, extracted{
			content:  fmt.Sprintf("Teacher creates worksheets for %s subjects", strings.Join(subjects, ", ")),
			itemType: TypeFact,
		})
	case intent.TypeLessonPlanning:
		facts = append(facts, extracted{
			content:  "Teacher plans lessons for multi-grade classroom",
			itemType: TypeFact,
		})
	case intent.TypeBehaviorManagement:
		facts = append(facts, extracted{
			content:  "Teacher needs help with classroom behavior management",
			itemType: TypePreference,
		})
	case intent.TypeTranslation:
		facts = append(facts, extracted{
			content:  "Teacher uses bilingual content (English/Hindi)",
			itemType: TypePreference,
		})
	}

	lower := strings.ToLower(message)
	if strings.Contains(lower, "simple") || strings.Contains(lower, "easy") {
		facts = append(facts, extracted{
			content:  "Teacher prefers simple, easy-to-understand content",
			itemType: TypePreference,
		})
	}
	if strings.Contains(lower, "visual") || strings.Contains(lower, "diagram") {
		facts = append(facts, extracted{
			content:  "Teacher uses visual aids and diagrams",
			itemType: TypePreference,
		})
	}
	if strings.Contains(lower, "interactive") || strings.Contains(lower, "activity") {
		facts = append(facts, extracted{
			content:  "Teacher prefers interactive activities",
			itemType: TypePreference,
		})
	}

	return facts
}

// StoreFromMessage extracts facts from a classified message and stores
// each as a memory item tagged with the intent that produced it. Returns
// the stored items.
func (s *Service) StoreFromMessage(ctx context.Context, sessionID, message string, in intent.Intent, subjects []string, grades []int) ([]Item, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	meta := Metadata{
		Intent:     string(in.Type),
		Subjects:   subjects,
		Grades:     grades,
		Confidence: in.Confidence,
	}

	facts := extractFacts(message, in, subjects, grades)
	stored := make([]Item, 0, len(facts))
	for _, f := range facts {
		item, err := s.Store(ctx, sessionID, f.content, f.itemType, meta)
		if err != nil {
			return stored, err
		}
		stored = append(stored, *item)
	}
	return stored, nil
}
