package decisioning

import (
	"context"
)

// Select walks the sorted candidates and fills the delete window, then the
// preview window, with candidates for which actionable returns true.
// Evaluation stops as soon as both windows are full, so candidates past that
// point are never evaluated.
func Select(ctx context.Context, cands []Candidate, w Windows, actionable func(context.Context, Candidate) bool) Selection {
	var sel Selection
	for _, c := range cands {
		if sel.Full(w) || ctx.Err() != nil {
			break
		}
		if actionable(ctx, c) {
			sel.add(c, w)
		}
	}
	return sel
}
