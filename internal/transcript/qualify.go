package transcript

import (
	"strings"
	"unicode"
)

// minQualifiedWords: нижняя граница длины субтитров независимо от настроек.
const minQualifiedWords = 200

// englishStopwords: самые частые служебные слова английского языка.
var englishStopwords = map[string]struct{}{
	"the": {}, "and": {}, "to": {}, "of": {}, "a": {}, "in": {}, "is": {}, "it": {},
	"you": {}, "that": {}, "for": {}, "this": {}, "on": {}, "with": {}, "be": {}, "are": {},
	"so": {}, "your": {}, "i": {}, "we": {}, "have": {}, "not": {}, "but": {}, "what": {},
	"can": {}, "do": {}, "if": {}, "or": {}, "as": {}, "at": {}, "my": {}, "just": {},
	"was": {}, "they": {}, "all": {}, "about": {}, "from": {}, "like": {}, "there": {}, "get": {},
}

// IsEnglish: эвристика по доле английских служебных слов. Текст из одних
// латинских букв на другом языке обычно даёт долю ниже 15%.
func IsEnglish(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(words) == 0 {
		return false
	}

	var stop, latin int
	for _, w := range words {
		if isLatin(w) {
			latin++
		}
		if _, ok := englishStopwords[w]; ok {
			stop++
		}
	}
	if float64(latin)/float64(len(words)) < 0.8 {
		return false
	}
	return float64(stop)/float64(len(words)) >= 0.15
}

func isLatin(word string) bool {
	for _, r := range word {
		if r > unicode.MaxLatin1 && r != '\'' {
			return false
		}
	}
	return true
}

// Qualify: текст английский и содержит не меньше max(200, minBlogWords/2) слов.
func Qualify(text string, minBlogWords int) bool {
	if strings.TrimSpace(text) == "" || !IsEnglish(text) {
		return false
	}
	need := minBlogWords / 2
	if need < minQualifiedWords {
		need = minQualifiedWords
	}
	return len(strings.Fields(text)) >= need
}
