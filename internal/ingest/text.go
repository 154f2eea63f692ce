package ingest

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	pdf "github.com/dslipak/pdf"
	"golang.org/x/net/html"
)

// MaxChunkLen bounds the size in bytes of a text chunk sent for embedding.
const MaxChunkLen = 2000

var imageMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// MediaType returns the image media type for path, or "" if the extension
// is not a supported image format.
func MediaType(path string) string {
	return imageMediaTypes[strings.ToLower(filepath.Ext(path))]
}

// EncodeImage reads an image file and returns it base64 encoded with its
// media type.
func EncodeImage(path string) (string, string, error) {
	mediaType := MediaType(path)
	if mediaType == "" {
		return "", "", fmt.Errorf("unsupported image type %q", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read image %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", "", fmt.Errorf("image %s is empty", path)
	}
	return base64.StdEncoding.EncodeToString(data), mediaType, nil
}

// SplitIntoChunks splits content on line boundaries into chunks of at most
// maxLen bytes. Lines longer than maxLen are cut, never mid-rune.
func SplitIntoChunks(content string, maxLen int) []string {
	content = SanitizeUTF8(strings.TrimSpace(content))
	if content == "" {
		return nil
	}
	if len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		if chunk := strings.TrimSpace(buf.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for len(line) > maxLen {
			cut := maxLen
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			flush()
			buf.WriteString(line[:cut])
			flush()
			line = line[cut:]
		}

		if buf.Len()+len(line)+1 > maxLen {
			flush()
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	flush()
	return chunks
}

// SanitizeUTF8 drops invalid UTF-8 bytes. Postgres rejects them with 22021.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}

// ExtractMainText returns the visible text of an HTML document, one text
// node per line, skipping scripts and styles.
func ExtractMainText(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return ""
	}

	var b strings.Builder
	var walk func(*html.Node, bool)

	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				skip = true
			}
		}

		if n.Type == html.TextNode && !skip {
			if t := strings.TrimSpace(n.Data); len(t) > 1 {
				b.WriteString(t)
				b.WriteByte('\n')
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	return strings.TrimSpace(b.String())
}

// PDFPages returns the plain text of every page of a PDF, in page order.
// Pages without text are returned as empty strings.
func PDFPages(path string) ([]string, error) {
	r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}

		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			f := p.Font(name)
			fonts[name] = &f
		}

		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("pdf %s page %d: %w", path, i, err)
		}
		pages = append(pages, SanitizeUTF8(strings.TrimSpace(text)))
	}
	return pages, nil
}
