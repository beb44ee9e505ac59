package app

import "reviewpulse/internal/domain"

// Dedupe returns the incoming records whose source ids are not already
// stored, preserving the provider's ordering. Duplicates within the batch
// itself are also dropped, first occurrence wins.
func Dedupe(existing map[string]struct{}, incoming []domain.RawReview) []domain.RawReview {
	out := make([]domain.RawReview, 0, len(incoming))
	seen := make(map[string]struct{}, len(incoming))
	for _, r := range incoming {
		if _, ok := existing[r.SourceID]; ok {
			continue
		}
		if _, ok := seen[r.SourceID]; ok {
			continue
		}
		seen[r.SourceID] = struct{}{}
		out = append(out, r)
	}
	return out
}
