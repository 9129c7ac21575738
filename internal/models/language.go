package models

import (
	"slices"
	"strings"
)

const SourceLanguageEnglish = "en"

// TargetLanguages are the languages annotators can work in.
var TargetLanguages = []string{"tagalog", "cebuano", "ilocano"}

var languageAliases = map[string]string{
	"english":  SourceLanguageEnglish,
	"eng":      SourceLanguageEnglish,
	"tl":       "tagalog",
	"fil":      "tagalog",
	"filipino": "tagalog",
	"ceb":      "cebuano",
	"ilo":      "ilocano",
	"iloko":    "ilocano",
}

// NormalizeLanguage is the single place language names are canonicalized.
// Every model hook and every query argument goes through it.
func NormalizeLanguage(lang string) string {
	l := strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[l]; ok {
		return alias
	}
	return l
}

func NormalizeLanguages(langs []string) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		n := NormalizeLanguage(l)
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

func IsTargetLanguage(lang string) bool {
	return slices.Contains(TargetLanguages, NormalizeLanguage(lang))
}

// LanguagePair identifies the direction of a sentence.
type LanguagePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func NewLanguagePair(source, target string) LanguagePair {
	return LanguagePair{Source: NormalizeLanguage(source), Target: NormalizeLanguage(target)}
}
