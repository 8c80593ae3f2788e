package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecord(t *testing.T) {
	t.Run("complete record", func(t *testing.T) {
		rep := ValidateRecord(Record{
			Title: "A", Domain: "a.org", Location: "North", MainColor: "#123456",
			Socials: Socials{Twitter: "https://twitter.com/a"},
		})
		assert.True(t, rep.Valid(), "problems: %v", rep.Problems)
	})

	t.Run("missing required fields", func(t *testing.T) {
		rep := ValidateRecord(Record{Domain: "a.org"})
		assert.ElementsMatch(t, []string{"missing title", "missing location", "missing mainColor"}, rep.Problems)
	})

	t.Run("malformed values", func(t *testing.T) {
		rep := ValidateRecord(Record{
			Title: "A", Domain: "https://a.org", Location: "X",
			MainColor: "blue", SecondaryColor: "#12",
			Socials: Socials{Facebook: "fb/a"},
		})
		assert.Len(t, rep.Problems, 4)
		assert.False(t, rep.Valid())
	})
}

func TestValidateRecords_CountsInvalid(t *testing.T) {
	reports, invalid := ValidateRecords([]Record{
		{Title: "A", Domain: "a.org", Location: "N", MainColor: "#000000"},
		{Title: "", Domain: "b.org", Location: "S", MainColor: "#FFFFFF"},
	})
	assert.Len(t, reports, 2)
	assert.Equal(t, 1, invalid)
	assert.Equal(t, "b.org", reports[1].Domain)
}
