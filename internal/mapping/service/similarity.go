package service

import (
	"math"
	"strings"
)

// Similarity: доля общих слов (от большего набора) с подтяжкой до 0.9,
// если одна строка целиком входит в другую. Результат в [0..1].
// Порядок слов не важен, опечатки внутри слова не прощаются.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	wa, wb := words(a), words(b)
	total := len(wa)
	if len(wb) > total {
		total = len(wb)
	}
	if total == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			common++
		}
	}
	score := float64(common) / float64(total)
	if containsFold(a, b) {
		return math.Max(score, containsScore)
	}
	return score
}

// Confidence: уверенность в сопоставлении наименования продукта с кандидатом.
func Confidence(productName, candidateName string) float64 {
	if productName == "" || candidateName == "" {
		return 0
	}
	if strings.EqualFold(productName, candidateName) {
		return 1
	}
	s := Similarity(Normalize(productName), Normalize(candidateName))
	if containsFold(productName, candidateName) {
		return math.Min(s+containsBonus, 1)
	}
	return s
}
