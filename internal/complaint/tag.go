package complaint

import "github.com/TobiSchelling/NoiseStory/internal/phase"

// Tag returns a copy of records with each Phase assigned from CreatedAt.
func Tag(records []Complaint, b phase.Boundaries) []Complaint {
	out := make([]Complaint, len(records))
	for i, r := range records {
		r.Phase = b.Classify(r.CreatedAt)
		out[i] = r
	}
	return out
}
