package intelligence

import (
	"github.com/smartdoor/orchestrator/internal/lexicon"
	"github.com/smartdoor/orchestrator/internal/models"
)

// Classify runs the closed-set intent ladder from spec §4.4 step 1. Rules
// are evaluated in order; the first match wins.
func Classify(normalizedTranscript string, objects []models.DetectedObject, lex *lexicon.Set) models.Intent {
	t := normalizedTranscript
	hasPackage := HasPackageObject(objects)

	switch {
	case lexicon.ContainsAny(t, lex.Threat):
		return models.IntentAggression
	case lexicon.ContainsAny(t, lex.Distress):
		return models.IntentHelp
	case lexicon.ContainsAny(t, lex.Scam):
		return models.IntentScamAttempt
	case lexicon.ContainsAny(t, lex.OccupancyProbe):
		return models.IntentOccupancyProbe
	case lexicon.ContainsAny(t, lex.IdentityClaim):
		return models.IntentIdentityClaim
	case lexicon.ContainsAny(t, lex.EntryRequest):
		return models.IntentEntryRequest
	case lexicon.ContainsAny(t, lex.GovernmentClaim):
		return models.IntentGovernmentClaim
	case lexicon.ContainsAny(t, lex.DomesticStaff):
		return models.IntentDomesticStaff
	// "delivery wins over sales when package object also detected" (spec
	// §4.4 item 12) — this short-circuit must run before the
	// sales_marketing/child_elderly checks below or a package delivery
	// phrased with sales-adjacent vocabulary would misclassify.
	case hasPackage && lexicon.ContainsAny(t, lex.Delivery):
		return models.IntentDelivery
	case lexicon.ContainsAny(t, lex.ReligiousDonation):
		return models.IntentReligiousDonation
	case lexicon.ContainsAny(t, lex.SalesMarketing):
		return models.IntentSalesMarketing
	case lexicon.ContainsAny(t, lex.ChildElderly) &&
		(lexicon.ContainsAny(t, lex.Distress) || hasHydrationRequest(t)):
		return models.IntentChildElderly
	case lexicon.ContainsAny(t, lex.Delivery):
		return models.IntentDelivery
	case lexicon.ContainsAny(t, lex.Visitor):
		return models.IntentVisitor
	default:
		return models.IntentUnknown
	}
}

func hasHydrationRequest(t string) bool {
	return lexicon.ContainsAny(t, []string{"water please", "thirsty", "glass of water"})
}

// HasPackageObject reports whether a "package" object was detected, used by
// the delivery-vs-sales risk adjustment (spec §4.4 per-intent table).
func HasPackageObject(objects []models.DetectedObject) bool {
	for _, o := range objects {
		if o.Label == "package" {
			return true
		}
	}
	return false
}

// HasEntryVocabulary reports whether the transcript requests entry/unlock,
// used both by intent classification and the context risk adjustment.
func HasEntryVocabulary(normalizedTranscript string, lex *lexicon.Set) bool {
	return lexicon.ContainsAny(normalizedTranscript, lex.EntryRequest)
}
