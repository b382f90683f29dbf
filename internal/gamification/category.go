package gamification

import "strings"

// Category 表示属性类别，统一使用小写名称
type Category string

const (
	CategoryIntelligence Category = "intelligence"
	CategoryKnowledge    Category = "knowledge"
	CategoryDiscipline   Category = "discipline"
	CategoryEnergy       Category = "energy"
	CategorySocial       Category = "social"
	CategoryCharisma     Category = "charisma"
	CategoryWellness     Category = "wellness"
	CategoryStress       Category = "stress"
)

const (
	// MaxAttributeValue 普通属性上限
	MaxAttributeValue = 1000
	// MaxStressValue 压力值上限
	MaxStressValue = 100
)

// KnownCategories 返回展示用的已知类别，顺序固定
func KnownCategories() []Category {
	return []Category{
		CategoryIntelligence,
		CategoryKnowledge,
		CategoryDiscipline,
		CategoryEnergy,
		CategorySocial,
		CategoryCharisma,
		CategoryWellness,
		CategoryStress,
	}
}

// NormalizeCategory 去除空白并转为小写
func NormalizeCategory(name string) Category {
	return Category(strings.ToLower(strings.TrimSpace(name)))
}

// IsKnown 判断是否为已知类别。未知类别依旧可以记账，只是不参与默认展示
func (c Category) IsKnown() bool {
	for _, known := range KnownCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// Title 返回首字母大写的名称，用于拼接奖励描述
func (c Category) Title() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Bound 返回类别允许的取值区间
func Bound(c Category) (lo, hi int) {
	if c == CategoryStress {
		return 0, MaxStressValue
	}
	return 0, MaxAttributeValue
}

// Clamp 将数值限制在类别区间内
func Clamp(c Category, value int) int {
	lo, hi := Bound(c)
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
