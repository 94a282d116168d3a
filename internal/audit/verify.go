package audit

import (
	"encoding/json"
	"fmt"
)

// Verifier checks an integrity tag against a payload.
type Verifier interface {
	Verify(payload any, sig string) (bool, error)
}

// Issue describes one event whose tag does not check out.
type Issue struct {
	Index     int    `json:"index"`
	Event     Kind   `json:"event"`
	MandateID string `json:"mandate_id,omitempty"`
	Reason    string `json:"reason"`
}

// Verify recomputes the tag of every tagged event in events (chronological
// order) and reports the ones that fail. An empty result means every tag is
// intact.
func Verify(events []Event, v Verifier) []Issue {
	var issues []Issue
	for i, e := range events {
		tagged, ok := e.(Tagged)
		if !ok {
			continue
		}
		if reason := check(tagged, v); reason != "" {
			issues = append(issues, Issue{Index: i, Event: e.Kind(), MandateID: e.Mandate(), Reason: reason})
		}
	}
	return issues
}

func check(e Tagged, v Verifier) string {
	tag := e.IntegrityTag()
	if len(tag.SignedPayload) == 0 {
		return "missing signed payload"
	}
	var subject struct {
		MandateID string `json:"mandate_id"`
	}
	if err := json.Unmarshal(tag.SignedPayload, &subject); err != nil {
		return fmt.Sprintf("signed payload unreadable: %v", err)
	}
	if subject.MandateID != e.Mandate() {
		return fmt.Sprintf("signed payload is for mandate %s", subject.MandateID)
	}
	ok, err := v.Verify(tag.SignedPayload, tag.Signature)
	if err != nil {
		return fmt.Sprintf("verify: %v", err)
	}
	if !ok {
		return "signature mismatch"
	}
	return ""
}
