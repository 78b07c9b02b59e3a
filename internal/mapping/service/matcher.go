package service

import (
	"math"
	"strconv"
	"strings"

	"svs-mapping/internal/mapping/model"
)

const (
	// Порог отбора кандидата, ниже него «совпадения нет».
	DefaultCandidateThreshold = 0.2
	// Порог похожести для автоназначения кода. Между порогами остаётся подсказка на ручную проверку.
	DefaultAutoAssignThreshold = 0.6

	containsScore   = 0.9  // одна строка входит в другую
	containsBonus   = 0.2  // надбавка уверенности за вхождение
	exactGroupScore = 0.95 // категория продукта == группа СВС
	groupWeight     = 0.8  // совпадение по группе весит меньше, чем по наименованию
)

type Tier string

const (
	TierNone     Tier = ""
	TierExact    Tier = "exact"
	TierContains Tier = "contains"
	TierFuzzy    Tier = "fuzzy"
)

type MatchConfig struct {
	CandidateThreshold  float64
	AutoAssignThreshold float64
}

// Matcher подбирает материал СВС для продукта. Без состояния, безопасен для параллельного использования.
type Matcher struct {
	candidateThreshold  float64
	autoAssignThreshold float64
}

func NewMatcher(cfg MatchConfig) *Matcher {
	m := &Matcher{
		candidateThreshold:  cfg.CandidateThreshold,
		autoAssignThreshold: cfg.AutoAssignThreshold,
	}
	if m.candidateThreshold <= 0 || m.candidateThreshold >= 1 {
		m.candidateThreshold = DefaultCandidateThreshold
	}
	if m.autoAssignThreshold <= 0 || m.autoAssignThreshold > 1 {
		m.autoAssignThreshold = DefaultAutoAssignThreshold
	}
	return m
}

// Assessment: решение об автоназначении кода для выбранного кандидата.
type Assessment struct {
	Confidence float64
	Code       string // пусто, если доверять совпадению нельзя
	Auto       bool   // код назначается автоматически
	Tier       Tier
}

func categoryOrName(name, category string) string {
	if strings.TrimSpace(category) != "" {
		return category
	}
	return name
}

// FindBestMatch возвращает кандидата с наибольшим баллом выше порога отбора.
// При равных баллах побеждает первый по порядку справочника.
func (m *Matcher) FindBestMatch(name, category string, catalog []model.CatalogEntry) (model.CatalogEntry, float64, bool) {
	if strings.TrimSpace(name) == "" {
		return model.CatalogEntry{}, 0, false
	}
	hasCategory := strings.TrimSpace(category) != ""
	normName := Normalize(name)
	normCat := Normalize(categoryOrName(name, category))

	var (
		best  model.CatalogEntry
		score = -1.0
	)
	for _, e := range catalog {
		var s float64
		switch {
		case strings.EqualFold(name, e.ItemName):
			s = 1
		case hasCategory && strings.EqualFold(category, e.GroupName):
			s = exactGroupScore
		default:
			item := Similarity(normName, Normalize(e.ItemName))
			group := Similarity(normCat, Normalize(e.GroupName))
			s = math.Max(item, group*groupWeight)
		}
		if s <= m.candidateThreshold {
			continue
		}
		if s > score {
			best, score = e, s
		}
	}
	if score < 0 {
		return model.CatalogEntry{}, 0, false
	}
	return best, score, true
}

// Assess решает, можно ли назначить код автоматически.
func (m *Matcher) Assess(name, category string, match model.CatalogEntry) Assessment {
	catOrName := categoryOrName(name, category)
	conf := math.Max(Confidence(name, match.ItemName), Confidence(catOrName, match.GroupName))

	nName, nItem := Normalize(name), Normalize(match.ItemName)
	nCat, nGroup := Normalize(catOrName), Normalize(match.GroupName)

	exactItem := name != "" && strings.EqualFold(name, match.ItemName)
	exactGroup := strings.TrimSpace(category) != "" && nGroup != "" &&
		(nCat == nGroup || strings.EqualFold(category, match.GroupName))
	containsItem := containsFold(nName, nItem)
	containsGroup := containsFold(nCat, nGroup)
	similarItem := Similarity(nName, nItem) >= m.autoAssignThreshold
	similarGroup := Similarity(nCat, nGroup) >= m.autoAssignThreshold

	code := strconv.Itoa(match.ItemID)
	switch {
	case exactItem || exactGroup:
		return Assessment{Confidence: 1, Code: code, Auto: true, Tier: TierExact}
	case containsItem || containsGroup:
		return Assessment{Confidence: containsScore, Code: code, Auto: true, Tier: TierContains}
	case similarItem || similarGroup:
		return Assessment{Confidence: clamp01(conf), Code: code, Auto: true, Tier: TierFuzzy}
	}
	return Assessment{Confidence: clamp01(conf), Tier: TierNone}
}

// Match сопоставляет один продукт со справочником, ничего не сохраняя.
func (m *Matcher) Match(p model.Product, catalog []model.CatalogEntry) model.MatchResult {
	res := model.MatchResult{
		ProductID:   p.ID,
		ProductName: p.Name,
		ProductCode: p.Code,
	}
	best, _, ok := m.FindBestMatch(p.Name, p.Category, catalog)
	if !ok {
		return res
	}
	itemID, groupID := best.ItemID, best.GroupID
	res.MatchedItemID = &itemID
	res.MatchedItemName = best.ItemName
	res.MatchedGroupID = &groupID
	res.MatchedGroupName = best.GroupName
	res.MeasureName = best.MeasureName
	res.IsAutoMatched = true

	a := m.Assess(p.Name, p.Category, best)
	res.Confidence = a.Confidence
	res.AssignedCode = a.Code
	res.Tier = string(a.Tier)
	return res
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
