package rag

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// minLangConfidence is the detector confidence below which a question is
// treated as English.
const minLangConfidence = 0.5

var languageNames = map[string]string{
	"en": "English",
	"pt": "Portuguese",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
}

func resolveLang(requested, question string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	if requested != "" && requested != "auto" {
		return requested
	}
	return detectLang(question)
}

func detectLang(s string) string {
	info := whatlanggo.Detect(s)
	if info.Confidence < minLangConfidence {
		return "en"
	}
	switch info.Lang {
	case whatlanggo.Por:
		return "pt"
	case whatlanggo.Spa:
		return "es"
	case whatlanggo.Fra:
		return "fr"
	case whatlanggo.Deu:
		return "de"
	case whatlanggo.Ita:
		return "it"
	default:
		return "en"
	}
}

// languageName returns the English name of a language code, or the code
// itself when unknown.
func languageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	return code
}
