package service

import (
	"regexp"
	"strings"
)

// скобки, дефис и подчёркивание считаются разделителями слов
var separators = strings.NewReplacer("(", " ", ")", " ", "-", " ", "_", " ")

// всё, что не буква/цифра/подчёркивание и не пробел
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\p{M}_\s]+`)

// Normalize приводит наименование к виду для сравнения:
// нижний регистр, пунктуация → пробел, без двойных пробелов по краям и внутри.
// "Молоко 2,5% (пастер.)" → "молоко 2 5 пастер"
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	out := strings.ToLower(s)
	out = separators.Replace(out)
	out = nonWord.ReplaceAllString(out, " ")
	return collapseSpaces(out)
}

// Схлопывание пробелов (заодно обрезает края)
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// words: множество слов строки в нижнем регистре, пустые токены отброшены.
func words(s string) map[string]struct{} {
	f := strings.Fields(s)
	m := make(map[string]struct{}, len(f))
	for _, w := range f {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}

// containsFold: a ⊂ b или b ⊂ a без учёта регистра. Пустые строки не совпадают.
func containsFold(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
