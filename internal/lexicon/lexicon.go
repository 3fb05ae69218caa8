// Package lexicon holds the keyword tables used by the Intelligence engine's
// intent classifier and emotion inference (spec §4.3, §4.4). Spec §9 Open
// Question (b) leaves the exact keyword lists as configuration rather than
// fixed business logic; this package is the default configuration and is
// structured so a deployment can override it without touching classify.go.
package lexicon

import "strings"

// Set groups the category keyword lists consulted by the classifier.
type Set struct {
	Threat             []string
	Distress           []string
	Scam               []string
	OccupancyProbe     []string
	IdentityClaim      []string
	EntryRequest       []string
	GovernmentClaim    []string
	DomesticStaff      []string
	ReligiousDonation  []string
	SalesMarketing     []string
	ChildElderly       []string
	Delivery           []string
	Visitor            []string
}

// Default is the built-in keyword configuration, covering English and
// romanized Hindi ("Hinglish") vocabulary as used in spec scenarios S2/S4.
func Default() *Set {
	return &Set{
		Threat: []string{
			"knife", "gun", "weapon", "kill you", "hurt you", "break in",
			"i will hurt", "i'll kill", "open the door or", "shoot",
		},
		Distress: []string{
			"help", "emergency", "please help", "scared", "i am scared",
			"madad", "bachao", "emergency hai",
		},
		Scam: []string{
			"otp", "verification code", "verify code", "upi", "scan this qr",
			"qr code", "bank account number", "account number", "refund",
			"collection agent", "kyc", "aadhaar verification", "aadhar verification",
			"aadhaar otp",
		},
		OccupancyProbe: []string{
			"anyone home", "anyone there", "is anyone home", "koi ghar pe hai",
			"koi hai ghar mein", "is someone home",
		},
		IdentityClaim: []string{
			"i know the owner", "i am a relative", "relative of", "owner told me",
			"owner sent me", "owner ne bheja",
		},
		EntryRequest: []string{
			"open the door", "let me in", "unlock the door", "can i come in",
			"open the gate", "darwaza kholo",
		},
		GovernmentClaim: []string{
			"electricity department", "electricity board", "gas department",
			"water department", "police department", "tax department",
			"income tax", "inspection", "meter reading", "government officer",
		},
		DomesticStaff: []string{
			"maid", "driver", "cook", "helper", "domestic help", "cleaning staff",
		},
		ReligiousDonation: []string{
			"temple", "mandir", "church", "donation", "festival collection",
			"chanda", "puja collection",
		},
		SalesMarketing: []string{
			"demo", "free demo", "policy", "insurance policy", "sales offer",
			"limited time offer", "subscription plan",
		},
		ChildElderly: []string{
			"child", "kid", "elderly", "old man", "old woman", "grandma",
			"grandpa", "water please", "thirsty",
		},
		Delivery: []string{
			"package", "delivery", "courier", "parcel", "cod", "cash on delivery",
			"amazon delivery", "order delivery",
		},
		Visitor: []string{
			"meet", "appointment", "friend", "family", "here to see",
			"i am here for", "visiting",
		},
	}
}

// ContainsAny reports whether normalized contains any of the given phrases,
// matched on whole words/bigrams against a case-folded, already-normalized
// transcript (see Normalize).
func ContainsAny(normalized string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(normalized, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// Normalize case-folds a transcript and transliterates non-Latin scripts to
// their romanized equivalent so keyword matching is script-agnostic (spec
// §4.4: "Transcripts in scripts other than the canonical alphabet MUST be
// normalized before matching").
func Normalize(transcript string) string {
	return strings.ToLower(Transliterate(transcript))
}
