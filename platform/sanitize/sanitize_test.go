package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	assert.Equal(t, "hola mundo", Text("  <b>hola</b>    mundo "))
	assert.Equal(t, "alert(1)", Text("&lt;script&gt;alert(1)&lt;/script&gt;"))
	assert.Equal(t, "line one\nline two", Text("line one\nline   two"))
}

func TestOptionalText(t *testing.T) {
	assert.Nil(t, OptionalText(nil))

	blank := "  <p></p> "
	assert.Nil(t, OptionalText(&blank))

	value := " Acme <i>SL</i> "
	got := OptionalText(&value)
	if assert.NotNil(t, got) {
		assert.Equal(t, "Acme SL", *got)
	}
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "ana@example.com", Email("  Ana@Example.COM "))
}
