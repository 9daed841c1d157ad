package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseGuiaDocentIDs(t *testing.T) {
	id, year := parseGuiaDocentIDs("site_12345_2024")
	assert.Equal(t, "12345", id)
	assert.Equal(t, "2024", year)
}

func TestParseGuiaDocentIDsDefaultsYear(t *testing.T) {
	id, year := parseGuiaDocentIDs("site_12345")
	assert.Equal(t, "12345", id)
	assert.Equal(t, "2025", year)
}

func TestParseGuiaDocentIDsNoUnderscore(t *testing.T) {
	id, year := parseGuiaDocentIDs("site")
	assert.Equal(t, "", id)
	assert.Equal(t, "2025", year)
}

func TestSanitizeSubjectName(t *testing.T) {
	assert.Equal(t, "Algorithms - Design", sanitizeSubjectName("Algorithms / Design"))
	assert.Equal(t, "Intro to Go", sanitizeSubjectName("Intro: to Go"))
	assert.Equal(t, "Trimmed", sanitizeSubjectName("  Trimmed  "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel", truncate("hello", 3))
	assert.Equal(t, "", truncate("hello", 0))
}

func TestDecodeToolLinks(t *testing.T) {
	raw := `{"announcements":"a","lessons":"l","resources":"r","guiaDocent":"g"}`
	links := decodeToolLinks(raw)
	assert.Equal(t, toolLinks{Announcements: "a", Lessons: "l", Resources: "r", GuiaDocent: "g"}, links)
}

func TestDecodeToolLinksInvalidJSON(t *testing.T) {
	links := decodeToolLinks("not json")
	assert.Equal(t, toolLinks{}, links)
}
