package gamification

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Delta 表示某个类别的带符号变化量
type Delta struct {
	Category Category `json:"category"`
	Amount   int      `json:"delta"`
}

// Diagnostic 记录被跳过的子句，调用方可选择记录日志
type Diagnostic struct {
	Index  int
	Clause string
	Reason string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("clause %d %q: %s", d.Index, d.Clause, d.Reason)
}

// Parsed 为奖励描述的解析结果
type Parsed struct {
	Deltas      []Delta
	Diagnostics []Diagnostic
}

// ParseRewardExpression 解析形如 "+3 Discipline, -2 Stress" 的奖励描述。
// 无法识别的子句会被跳过并写入 Diagnostics，不影响其余子句；空串返回空结果。
func ParseRewardExpression(expr string) Parsed {
	var out Parsed
	if strings.TrimSpace(expr) == "" {
		return out
	}

	for i, raw := range strings.Split(expr, ",") {
		clause := strings.TrimSpace(raw)
		if clause == "" {
			continue
		}
		delta, reason := parseClause(clause)
		if reason != "" {
			out.Diagnostics = append(out.Diagnostics, Diagnostic{Index: i, Clause: clause, Reason: reason})
			continue
		}
		out.Deltas = append(out.Deltas, delta)
	}
	return out
}

func parseClause(clause string) (Delta, string) {
	sign := 1
	switch clause[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return Delta{}, "missing sign"
	}

	rest := clause[1:]
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return Delta{}, "missing amount"
	}
	amount, err := strconv.Atoi(rest[:digits])
	if err != nil || amount > MaxAttributeValue {
		return Delta{}, "amount out of range"
	}

	rest = rest[digits:]
	name := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if len(name) == len(rest) {
		return Delta{}, "missing whitespace before category"
	}
	if name == "" {
		return Delta{}, "missing category"
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != '_' {
			return Delta{}, "invalid category name"
		}
	}

	return Delta{Category: NormalizeCategory(name), Amount: sign * amount}, ""
}

// Negate 反转每个变化量的符号，用于取消完成
func Negate(deltas []Delta) []Delta {
	if deltas == nil {
		return nil
	}
	out := make([]Delta, len(deltas))
	for i, d := range deltas {
		out[i] = Delta{Category: d.Category, Amount: -d.Amount}
	}
	return out
}

// FormatReward 为未填写奖励描述的任务生成默认描述
func FormatReward(task TaskSpec) string {
	category := task.PrimaryCategory
	if category == "" {
		category = CategoryDiscipline
	}
	reward := fmt.Sprintf("+%d %s", task.RewardPoints/2, category.Title())
	if task.Difficulty > 1 {
		reward += fmt.Sprintf(", +%d %s", task.Difficulty-1, CategoryDiscipline.Title())
	}
	return reward
}
