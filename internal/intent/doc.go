// Package intent classifies free-text teacher requests into a fixed set of
// intents using weighted keyword and pattern scoring with contextual
// adjustments from the classroom profile (subjects, grades).
//
// Classification is fully deterministic and never fails: input that matches
// nothing falls back to the general query intent with low confidence.
package intent
