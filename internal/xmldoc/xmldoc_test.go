package xmldoc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/starford/xmledit/internal/apperr"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		valid bool
	}{
		{"self closing child", "<a><b/></a>", true},
		{"declaration", `<?xml version="1.0" encoding="UTF-8"?><a>x</a>`, true},
		{"stale encoding label", `<?xml version="1.0" encoding="ISO-8859-1"?><a>é</a>`, true},
		{"mismatched close", "<a><b></a>", false},
		{"unclosed", "<a><b></b>", false},
		{"two roots", "<a/><b/>", false},
		{"empty", "   ", false},
		{"text after root", "<a/>junk", false},
		{"bad entity", "<a>&nbsp;</a>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Validate(tt.in)
			assert.Equal(t, tt.valid, v.Valid, "error: %s", v.Error)
			if !tt.valid {
				assert.NotEmpty(t, v.Error)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("<a><b></a>")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrMalformed))
}

func TestParse_KeepsDeclarationAndWhitespace(t *testing.T) {
	in := "<?xml version=\"1.0\" encoding=\"UTF-8\"?><section id=\"s\">\n  <para>A &amp; B</para>\n</section>"
	doc, err := Parse(in)
	require.NoError(t, err)

	out, err := Serialize(doc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTextContent(t *testing.T) {
	doc, err := Parse("<p>one <b>two <i>three</i></b><!-- no --> four</p>")
	require.NoError(t, err)
	assert.Equal(t, "one two three four", TextContent(doc.Root()))
}

func TestStartTag(t *testing.T) {
	doc, err := Parse(`<x:topic xmlns:x="urn:x" id="t1" note="a &lt; b"><x:para/></x:topic>`)
	require.NoError(t, err)

	root := doc.Root()
	assert.Equal(t, `<x:topic xmlns:x="urn:x" id="t1" note="a &lt; b">`, StartTag(root, false))
	assert.Equal(t, `<x:para/>`, StartTag(root.ChildElements()[0], true))
}

func TestPrettyPrint(t *testing.T) {
	got := PrettyPrint("<a><b>x</b>\n\n   \n<c/></a>")
	assert.Equal(t, "<a>\n<b>x</b>\n<c/>\n</a>", got)
}

func TestDecode_Latin1Declaration(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().String(`<?xml version="1.0" encoding="ISO-8859-1"?><a>café</a>`)
	require.NoError(t, err)

	s, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Contains(t, s, "café")
	assert.True(t, Validate(s).Valid)
}

func TestDecode_StripsUTF8BOM(t *testing.T) {
	s, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "<a/>"...))
	require.NoError(t, err)
	assert.Equal(t, "<a/>", s)
}

func TestDecode_UnknownEncoding(t *testing.T) {
	_, err := Decode([]byte(`<?xml version="1.0" encoding="klingon-8"?><a/>`))
	assert.True(t, errors.Is(err, apperr.ErrInvalid))
}
