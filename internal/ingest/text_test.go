package ingest

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := map[string]struct {
		content  string
		maxLen   int
		expected []string
	}{
		"empty": {
			content:  "  \n ",
			maxLen:   10,
			expected: nil,
		},
		"fits": {
			content:  "  one line  ",
			maxLen:   20,
			expected: []string{"one line"},
		},
		"line-boundaries": {
			content:  "aaaa\nbbbb\n\ncccc",
			maxLen:   10,
			expected: []string{"aaaa\nbbbb", "cccc"},
		},
		"long-line-cut": {
			content:  "abcdefghij\nxy",
			maxLen:   4,
			expected: []string{"abcd", "efgh", "ij", "xy"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitIntoChunks(tt.content, tt.maxLen))
		})
	}
}

func TestSplitIntoChunks_RespectsRunes(t *testing.T) {
	content := strings.Repeat("é", 10) + "\nend"
	for _, c := range SplitIntoChunks(content, 5) {
		assert.True(t, utf8.ValidString(c), c)
		assert.LessOrEqual(t, len(c), 5)
	}
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "abc", SanitizeUTF8("a\xffb\xfec"))
	assert.Equal(t, "ação", SanitizeUTF8("ação"))
	assert.Equal(t, "", SanitizeUTF8(""))
}

func TestExtractMainText(t *testing.T) {
	page := `<html><head><style>body{}</style><script>var x = 1;</script></head>
<body><h1>Inferentia2</h1><p>Up to <b>4x</b> throughput</p><noscript>enable js</noscript><p>x</p></body></html>`

	assert.Equal(t, "Inferentia2\nUp to\n4x\nthroughput", ExtractMainText(page))
}

func TestEncodeImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slide_1.JPG")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xd8, 0xff}, 0o644))

	b64, mediaType, err := EncodeImage(path)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mediaType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff}), b64)

	_, _, err = EncodeImage(filepath.Join(dir, "notes.txt"))
	assert.ErrorContains(t, err, "unsupported image type")

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, _, err = EncodeImage(empty)
	assert.ErrorContains(t, err, "empty")
}

func TestSlideNumber(t *testing.T) {
	assert.Equal(t, 12, slideNumber("img/slide_12.jpg"))
	assert.Equal(t, 3, slideNumber("page-3.png"))
	assert.Equal(t, 0, slideNumber("cover.jpg"))
}

func TestPDFPages(t *testing.T) {
	tests := map[string]struct {
		path      string
		expected  []string
		expectErr bool
	}{
		"pages-in-order": {
			path:     filepath.Join("testdata", "slides.pdf"),
			expected: []string{"Inferentia2 throughput", "", "Cost comparison\nTrn1 vs Inf2"},
		},
		"missing-file": {
			path:      filepath.Join("testdata", "missing.pdf"),
			expectErr: true,
		},
		"not-a-pdf": {
			path:      filepath.Join("testdata", "not_a.pdf"),
			expectErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			pages, err := PDFPages(tt.path)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pages)
		})
	}
}
