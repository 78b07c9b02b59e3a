package handler

import (
	"regexp"
	"strconv"
	"strings"
)

var rxHeaderJunk = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// нормализуем имя колонки: нижний регистр, ё→е, без служебных символов и лишних пробелов
func normHeaderKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("\u00A0", " ", "\u202F", " ", "ё", "е").Replace(s)
	s = rxHeaderJunk.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// resolveKey ищет реальный ключ записи по желаемому имени.
// Варианты через "|": "NameMat|Наименование материала". Ключи из taken пропускаются.
func resolveKey(rec map[string]string, want string, taken map[string]bool) string {
	want = strings.TrimSpace(want)
	if want == "" {
		return ""
	}
	alts := strings.Split(want, "|")
	for i := range alts {
		alts[i] = strings.TrimSpace(alts[i])
	}

	// 1) точное совпадение (как есть)
	for _, a := range alts {
		if _, ok := rec[a]; ok && !taken[a] {
			return a
		}
	}

	norm := make([]string, 0, len(alts))
	for _, a := range alts {
		if n := normHeaderKey(a); n != "" {
			norm = append(norm, n)
		}
	}

	// 2) точное по нормализованному, 3) частичное: "наименование материала св" содержит "наименование материала"
	bestKey, bestScore := "", 0
	for k := range rec {
		if taken[k] {
			continue
		}
		nk := normHeaderKey(k)
		score := 0
		for _, n := range norm {
			if nk == n {
				return k
			}
			if nk != "" && (strings.Contains(nk, n) || strings.Contains(n, nk)) {
				score = max(score, min(len(n), len(nk)))
			}
		}
		// при равном счёте берём лексикографически меньший ключ, чтобы не зависеть от порядка map
		if score > bestScore || (score == bestScore && score > 0 && k < bestKey) {
			bestScore, bestKey = score, k
		}
	}
	return bestKey
}

// повторная шапка посреди выгрузки (1С печатает её на каждой странице)
func looksLikeHeaderMap(m map[string]string) bool {
	cnt := 0
	for k, v := range m {
		if nv := normHeaderKey(v); nv != "" && nv == normHeaderKey(k) {
			cnt++
		}
	}
	return cnt >= 2
}

func atoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return i
}

func toBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on", "да":
		return true
	case "0", "false", "no", "n", "off", "нет":
		return false
	default:
		return def
	}
}
