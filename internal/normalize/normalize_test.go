package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestName_Empty(t *testing.T) {
	assert.Equal(t, "", Name(""))
	assert.Equal(t, "", Name("   "))
}

func TestName_LowercaseAndFold(t *testing.T) {
	assert.Equal(t, "pratelstvi", Name("Kavárna Přátelství"))
	assert.Equal(t, "u fleku", Name("U Fleků"))
}

func TestName_StripLegalSuffix(t *testing.T) {
	assert.Equal(t, "mozart", Name("Café Mozart s.r.o."))
	assert.Equal(t, "zlaty lev", Name("Zlatý Lev a.s."))
	assert.Equal(t, "novak syn", Name("Novák & Syn v.o.s."))

	// Sloppy spellings: missing trailing dot, parenthesized, collapsed.
	assert.Equal(t, "novak", Name("Pekárna Novák s.r.o"))
	assert.Equal(t, "mozart", Name("Café Mozart (s.r.o.)"))
	assert.Equal(t, "novak", Name("novak sro"))
}

func TestName_ShortSuffixNeedsDots(t *testing.T) {
	// "as" is also the fold of the town Aš; without a dotted spelling it
	// stays part of the name.
	assert.Equal(t, "hotel as", Name("Hotel Aš"))
	assert.Equal(t, "cez", Name("ČEZ a.s."))
}

func TestName_StripTradeDescriptors(t *testing.T) {
	assert.Equal(t, "u petra", Name("Restaurace U Petra"))
	assert.Equal(t, "slavia", Name("Kavárna Slavia"))
	assert.Equal(t, "roma", Name("Pizzeria Roma"))
	// Descriptor stripped only as a whole token.
	assert.Equal(t, "barbora", Name("Barbora"))
}

func TestName_Punctuation(t *testing.T) {
	assert.Equal(t, "novak syn", Name("Novák & Syn"))
	assert.Equal(t, "u tri ruzi", Name("U Tří-Růží"))
}

func TestName_Idempotent(t *testing.T) {
	inputs := []string{
		"Kavárna Přátelství",
		"Restaurace U Zlatého Lva s.r.o.",
		"Café & Bistro - Praha",
		"Pekárna Novák s.r.o",
		"Café Mozart (s.r.o.)",
		"Hotel Aš a.s.",
		"Novák spol. s r.o.",
		"",
		"   whitespace   everywhere   ",
	}
	for _, in := range inputs {
		once := Name(in)
		assert.Equal(t, once, Name(once), "not idempotent for %q", in)
	}
}

func TestName_AccentVariantsConverge(t *testing.T) {
	// The acceptance pair from the dedupe scenario: accent/case variants
	// must normalize to the same join key.
	assert.Equal(t, Name("Kavárna Přátelství"), Name("kavarna pratelstvi"))
}

func TestPhone_Valid(t *testing.T) {
	for _, in := range []string{
		"+420 777 123 456",
		"00420777123456",
		"777123456",
		"420777123456",
		"777-123-456",
	} {
		got, ok := Phone(in)
		assert.True(t, ok, "input %q", in)
		assert.Equal(t, "+420777123456", got)
	}
}

func TestPhone_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"12345",
		"7771234567",    // 10 digits
		"+49 30 1234567", // German number, wrong length
		"call me",
	} {
		_, ok := Phone(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestURL(t *testing.T) {
	got, ok := URL("Example.CZ/Menu")
	assert.True(t, ok)
	assert.Equal(t, "https://example.cz/Menu", got)

	got, ok = URL("http://WWW.Pizza.cz")
	assert.True(t, ok)
	assert.Equal(t, "http://www.pizza.cz", got)

	_, ok = URL("")
	assert.False(t, ok)
	_, ok = URL("not a url at all")
	assert.False(t, ok)
}

func TestEmail(t *testing.T) {
	got, ok := Email("  Info@Example.CZ ")
	assert.True(t, ok)
	assert.Equal(t, "info@example.cz", got)

	_, ok = Email("nonsense")
	assert.False(t, ok)
	_, ok = Email("")
	assert.False(t, ok)
}

func TestValidICO(t *testing.T) {
	// 25596641: weighted sum of 2,5,5,9,6,6,4 with weights 8..2 gives
	// checksum digit 1.
	assert.True(t, ValidICO("25596641"))
	assert.True(t, ValidICO("255 966 41"))

	assert.False(t, ValidICO("25596642")) // wrong checksum
	assert.False(t, ValidICO("1234567"))  // too short
	assert.False(t, ValidICO("abcdefgh"))
	assert.False(t, ValidICO(""))
}

func TestIsCzechDomain(t *testing.T) {
	assert.True(t, IsCzechDomain("https://www.pivnice.cz"))
	assert.True(t, IsCzechDomain("pivnice.cz"))
	assert.False(t, IsCzechDomain("https://example.com"))
	assert.False(t, IsCzechDomain(""))
}
