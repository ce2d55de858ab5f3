package evidence

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/codescout/internal/envelope"
	"github.com/kadirpekel/codescout/internal/tools"
)

func TestValidateApprovesClaimsCitedWithinAccumulatedSet(t *testing.T) {
	accumulated := envelope.NewCitationSet()
	accumulated.Add("src/auth/login.py:42")

	claims := []envelope.Claim{
		{Text: "login is defined in src/auth/login.py", SupportingCitations: []tools.Citation{"src/auth/login.py:42"}},
	}

	result := Validate(claims, accumulated)
	require.True(t, result.Approved())
	require.Len(t, result.Supported, 1)
	require.Empty(t, result.Unsupported)
}

func TestValidateRejectsClaimWithNoCitations(t *testing.T) {
	accumulated := envelope.NewCitationSet()
	claims := []envelope.Claim{{Text: "errors are handled globally"}}

	result := Validate(claims, accumulated)
	require.False(t, result.Approved())
	require.Len(t, result.Unsupported, 1)
}

func TestValidateRejectsClaimCitingEvidenceOutsideAccumulatedSet(t *testing.T) {
	accumulated := envelope.NewCitationSet()
	accumulated.Add("a.go:1")

	claims := []envelope.Claim{
		{Text: "invented claim", SupportingCitations: []tools.Citation{"b.go:99"}},
	}

	result := Validate(claims, accumulated)
	require.False(t, result.Approved())
	require.Equal(t, []tools.Citation{"b.go:99"}, result.MissingCitations)
}

func TestValidateDeduplicatesMissingCitationsAcrossClaims(t *testing.T) {
	accumulated := envelope.NewCitationSet()
	claims := []envelope.Claim{
		{Text: "claim one", SupportingCitations: []tools.Citation{"ghost.go:1"}},
		{Text: "claim two", SupportingCitations: []tools.Citation{"ghost.go:1"}},
	}

	result := Validate(claims, accumulated)
	require.Equal(t, []tools.Citation{"ghost.go:1"}, result.MissingCitations)
	require.Len(t, result.Unsupported, 2)
}

func TestValidatePartialSupportAcrossMultipleClaims(t *testing.T) {
	accumulated := envelope.NewCitationSet()
	accumulated.Add("good.go:1")

	claims := []envelope.Claim{
		{Text: "supported", SupportingCitations: []tools.Citation{"good.go:1"}},
		{Text: "unsupported", SupportingCitations: []tools.Citation{"bad.go:2"}},
	}

	result := Validate(claims, accumulated)
	require.False(t, result.Approved())
	require.Len(t, result.Supported, 1)
	require.Len(t, result.Unsupported, 1)
}
