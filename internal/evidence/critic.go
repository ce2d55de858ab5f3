package evidence

import (
	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/tools"
)

// ValidationResult is the output of the critic validation algorithm:
// which claims are supported, which are not, and
// which citations referenced by claims were never observed by the
// envelope.
type ValidationResult struct {
	Supported   []envelope.Claim
	Unsupported []envelope.Claim
	// MissingCitations are citations referenced by an unsupported claim
	// that do not appear in the envelope's accumulated citation set.
	MissingCitations []tools.Citation
}

// Validate checks the claim-support bipartite graph: a claim is
// supported iff every citation it lists appears in the cumulative citation
// set accumulated by the envelope (never just the current stage's
// citations, and never the critic LLM's memory of what it read).
func Validate(claims []envelope.Claim, accumulated *envelope.CitationSet) ValidationResult {
	var result ValidationResult
	missingSeen := make(map[tools.Citation]struct{})

	for _, claim := range claims {
		if len(claim.SupportingCitations) == 0 {
			result.Unsupported = append(result.Unsupported, claim)
			continue
		}

		supported := true
		for _, cite := range claim.SupportingCitations {
			if !accumulated.Contains(cite) {
				supported = false
				if _, ok := missingSeen[cite]; !ok {
					missingSeen[cite] = struct{}{}
					result.MissingCitations = append(result.MissingCitations, cite)
				}
			}
		}

		if supported {
			result.Supported = append(result.Supported, claim)
		} else {
			result.Unsupported = append(result.Unsupported, claim)
		}
	}

	return result
}

// Approved reports whether every claim passed validation (step 4: approve
// iff every claim is supported).
func (r ValidationResult) Approved() bool { return len(r.Unsupported) == 0 }
