package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasDevanagari(t *testing.T) {
	assert.True(t, HasDevanagari("कोई है?"))
	assert.False(t, HasDevanagari("is anyone home"))
	assert.False(t, HasDevanagari(""))
}

func TestTransliterate_PassesLatinTextThroughUnchanged(t *testing.T) {
	assert.Equal(t, "is anyone home", Transliterate("is anyone home"))
}

func TestTransliterate_RomanizesRecognizedWords(t *testing.T) {
	got := Transliterate("कोई घर पे है")
	assert.Equal(t, "koi ghar pe hai", got)
}

func TestTransliterate_LeavesUnrecognizedWordsIntact(t *testing.T) {
	got := Transliterate("कोई अज्ञात शब्द है")
	assert.Contains(t, got, "koi")
	assert.Contains(t, got, "hai")
	// unrecognized words pass through verbatim rather than being dropped
	assert.Contains(t, got, "अज्ञात")
}

func TestTransliterate_StripsTrailingPunctuationBeforeLookup(t *testing.T) {
	got := Transliterate("कोई घर पे है?")
	assert.Equal(t, "koi ghar pe hai", got)
}

func TestNormalize_LowercasesAndTransliterates(t *testing.T) {
	got := Normalize("ओटीपी बताओ")
	assert.Contains(t, got, "otp")
}
