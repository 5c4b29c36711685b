package models

// Matches decides whether a candidate message belongs to an existing thread.
// It is pure: the decision depends only on the thread's current contents and
// the candidate's envelope.
//
// Rules are evaluated in order, short-circuiting on the first hit:
//  1. normalized subject equality (case-insensitive), the cheap common case
//     that works even when reply headers are missing
//  2. candidate References intersecting the external ids already in the thread
//  3. candidate In-Reply-To equal to an external id already in the thread
//
// Messages whose subject drifted entirely and that carry no header link start
// a new thread; no fuzzy recovery is attempted.
func Matches(thread *Thread, candidate Message) bool {
	if thread.Subject.Equal(candidate.Subject) {
		return true
	}

	contained := thread.externalIDs()

	for _, ref := range candidate.References {
		if _, ok := contained[ref]; ok {
			return true
		}
	}

	if candidate.InReplyTo != "" {
		if _, ok := contained[candidate.InReplyTo]; ok {
			return true
		}
	}

	return false
}
