package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "Quiz 1", Text("  <b>Quiz 1</b> "))
	assert.Equal(t, "", Text("<script>alert(1)</script>"))
	assert.Equal(t, "Tom & Jerry's", Text("Tom & Jerry's"))
}

func TestTextStripsEntityEncodedMarkup(t *testing.T) {
	got := Text("&lt;script&gt;alert(1)&lt;/script&gt;Quiz")
	assert.NotContains(t, got, "<")
	assert.NotContains(t, got, "script")
	assert.Contains(t, got, "Quiz")

	assert.Equal(t, "Bold", Text("&lt;b&gt;Bold&lt;/b&gt;"))

	got = Text("&lt;&lt;b&gt;x")
	assert.NotContains(t, got, "<")

	got = Text("&amp;lt;i&amp;gt;")
	assert.NotContains(t, got, "<")
}

func TestOptionalText(t *testing.T) {
	assert.Nil(t, OptionalText(nil))
	blank := "<i></i>"
	assert.Nil(t, OptionalText(&blank))
	desc := "Intro to <em>CS</em>"
	got := OptionalText(&desc)
	if assert.NotNil(t, got) {
		assert.Equal(t, "Intro to CS", *got)
	}
}
