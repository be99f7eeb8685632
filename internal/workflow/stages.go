package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/teachd/internal/notify"
)

// runAutomated dispatches an automated stage by its id. Unknown ids log
// their declared sub-steps and complete, so the pipeline stays
// configuration rather than hard-coded logic.
func (s *service) runAutomated(ctx context.Context, r *run, st *Stage) error {
	switch st.ID {
	case "classify":
		return s.stageClassify(r, st)
	case "generate":
		return s.stageGenerate(ctx, r, st)
	case "personalise":
		return s.stagePersonalise(r, st)
	case "review":
		return s.stageReview(r, st)
	case "memorise":
		return s.stageMemorise(ctx, r, st)
	case "notify":
		return s.stageNotify(ctx, r, st)
	default:
		s.logSubSteps(r, st)
		return nil
	}
}

// logSubSteps emits one log entry per declared sub-step label.
func (s *service) logSubSteps(r *run, st *Stage) {
	for _, label := range st.SubStepLabels {
		r.log(st, label, "", nil)
	}
}

// stageClassify runs the intent classifier and halts the run when the
// result is too ambiguous to act on.
func (s *service) stageClassify(r *run, st *Stage) error {
	in := s.classifier.Classify(r.trigger, r.subjects, r.grades)
	r.setIntent(in)

	r.log(st, fmt.Sprintf("Classified as %s", in.Type),
		fmt.Sprintf("Scored %d%% from matched keywords %v", in.Confidence, in.MatchedKeywords),
		map[string]any{
			"intent":     string(in.Type),
			"confidence": in.Confidence,
			"parameters": in.Parameters,
		})

	if in.Confidence < s.config.MinIntentConfidence {
		r.log(st, "Intent too ambiguous to proceed",
			fmt.Sprintf("Confidence %d%% is below the %d%% floor", in.Confidence, s.config.MinIntentConfidence),
			nil)
		return ErrAmbiguousIntent
	}
	return nil
}

// stageGenerate produces the candidate content, seeded with relevant
// session memory.
func (s *service) stageGenerate(ctx context.Context, r *run, st *Stage) error {
	recalled := s.memory.RetrieveRelevant(ctx, r.sessionID, r.trigger, 5)

	prompt := s.buildPrompt(r)
	if len(recalled) > 0 {
		notes := make([]string, len(recalled))
		for i, item := range recalled {
			notes[i] = item.Content
		}
		prompt += "\n\nKnown about this teacher:\n- " + strings.Join(notes, "\n- ")
		r.log(st, fmt.Sprintf("Recalled %d memory items", len(recalled)),
			"Relevant session memory is folded into the generation prompt", nil)
	}

	draft, err := s.generateWithTimeout(ctx, prompt)
	if err != nil {
		return err
	}
	r.setDraft(draft)

	r.log(st, "Generated candidate content",
		"Content produced from the classified request and session memory",
		map[string]any{"content_length": len(draft)})
	return nil
}

// stagePersonalise adapts the draft to the classroom profile.
func (s *service) stagePersonalise(r *run, st *Stage) error {
	s.logSubSteps(r, st)

	if len(r.grades) > 0 {
		grades := make([]string, len(r.grades))
		for i, g := range r.grades {
			grades[i] = fmt.Sprintf("%d", g)
		}
		note := fmt.Sprintf("\n\n(Adapted for grade %s)", strings.Join(grades, ", "))
		r.setDraft(r.currentDraft() + note)
		r.log(st, "Adapted content for grade levels",
			fmt.Sprintf("Classroom covers grades %s", strings.Join(grades, ", ")), nil)
	}
	return nil
}

// stageReview performs local quality checks on the draft.
func (s *service) stageReview(r *run, st *Stage) error {
	draft := r.currentDraft()
	if strings.TrimSpace(draft) == "" {
		return fmt.Errorf("no content to review")
	}

	s.logSubSteps(r, st)
	r.log(st, "Content passed review",
		"Draft is non-empty and within expected bounds",
		map[string]any{"content_length": len(draft)})
	return nil
}

// stageMemorise extracts and stores facts from the classified request.
func (s *service) stageMemorise(ctx context.Context, r *run, st *Stage) error {
	in := r.currentIntent()
	if in == nil {
		return fmt.Errorf("no classified intent to memorise")
	}

	items, err := s.memory.StoreFromMessage(ctx, r.sessionID, r.trigger, *in, r.subjects, r.grades)
	if err != nil {
		return fmt.Errorf("storing memory: %w", err)
	}

	r.log(st, fmt.Sprintf("Stored %d memory items", len(items)),
		"Facts and preferences extracted from this request", nil)
	return nil
}

// stageNotify dispatches a completion notice when recipients exist.
func (s *service) stageNotify(ctx context.Context, r *run, st *Stage) error {
	if len(r.recipients) == 0 {
		r.log(st, "No recipients configured",
			"Notification skipped, nothing to deliver", nil)
		return nil
	}

	s.logSubSteps(r, st)

	subject := "New worksheet available"
	body := "A new worksheet is ready for your class."
	if date := r.selectedDateValue(); date != "" {
		body = fmt.Sprintf("A new worksheet is scheduled for %s.", date)
	}

	if err := s.notifier.Send(ctx, notify.Notice{
		Recipients: r.recipients,
		Subject:    subject,
		Body:       body,
	}); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	r.log(st, fmt.Sprintf("Notified %d recipients", len(r.recipients)), "", nil)
	return nil
}

func (r *run) selectedDateValue() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedDate
}

// checkpointPayload builds the data an external reviewer needs.
func (s *service) checkpointPayload(r *run, st *Stage) map[string]any {
	switch st.ID {
	case "schedule":
		return map[string]any{
			"suggested_dates": suggestedDates(time.Now(), 3),
		}
	default:
		r.mu.Lock()
		defer r.mu.Unlock()
		return map[string]any{
			"content":       r.draft,
			"regenerations": r.regenerations,
		}
	}
}

// regenerate re-runs generation for a checkpoint stage and returns the
// refreshed payload. The attempt number decorates the prompt so the
// model produces different output.
func (s *service) regenerate(ctx context.Context, r *run, st *Stage) (map[string]any, error) {
	r.mu.Lock()
	r.regenerations++
	attempt := r.regenerations
	r.mu.Unlock()

	prompt := s.buildPrompt(r) + fmt.Sprintf(" (attempt %d, make it different)", attempt)

	draft, err := s.generateWithTimeout(ctx, prompt)
	if err != nil {
		return nil, err
	}
	r.setDraft(draft)

	r.log(st, fmt.Sprintf("Regenerated content (attempt %d)", attempt),
		"External reviewer asked for a different version",
		map[string]any{"attempt": attempt})

	return map[string]any{
		"content":       draft,
		"regenerations": attempt,
	}, nil
}

// materialize produces the final artifact from accumulated stage
// outputs.
func (s *service) materialize(ctx context.Context, r *run) (string, error) {
	r.mu.Lock()
	draft := r.draft
	date := r.selectedDate
	r.mu.Unlock()

	prompt := "Finalize the following teaching material for distribution"
	if date != "" {
		prompt += " on " + date
	}
	prompt += ":\n\n" + draft

	return s.generateWithTimeout(ctx, prompt)
}

// generateWithTimeout wraps the external generation call with the
// orchestrator's own bound so an unresponsive backend cannot wedge a
// run.
func (s *service) generateWithTimeout(ctx context.Context, prompt string) (string, error) {
	if s.config.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.GenerationTimeout)
		defer cancel()
	}
	return s.gen.Generate(ctx, prompt)
}

// buildPrompt renders the base generation prompt from the trigger and
// classification.
func (s *service) buildPrompt(r *run) string {
	in := r.currentIntent()

	var b strings.Builder
	b.WriteString("Teacher request: ")
	b.WriteString(r.trigger)

	if in != nil {
		b.WriteString(fmt.Sprintf("\nRequest type: %s", in.Type))
		for _, key := range []string{"count", "difficulty", "targetLanguage", "targetGrade", "duration"} {
			if v, ok := in.Parameters[key]; ok {
				b.WriteString(fmt.Sprintf("\n%s: %v", key, v))
			}
		}
	}
	if len(r.subjects) > 0 {
		b.WriteString("\nSubjects: " + strings.Join(r.subjects, ", "))
	}
	return b.String()
}

// suggestedDates returns the next n school days after from, skipping
// weekends.
func suggestedDates(from time.Time, n int) []string {
	dates := make([]string, 0, n)
	d := from
	for len(dates) < n {
		d = d.AddDate(0, 0, 1)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates
}
