package gamification

// Ledger 保存单个用户各类别的属性值，缺失的类别视为 0
type Ledger map[Category]int

// Clone 返回独立副本
func (l Ledger) Clone() Ledger {
	cp := make(Ledger, len(l))
	for k, v := range l {
		cp[k] = v
	}
	return cp
}

// Get 返回类别当前值
func (l Ledger) Get(c Category) int {
	return l[c]
}

// Apply 叠加变化量并按类别区间截断，返回写入后的值。
// 截断吞掉的部分不会被保留，之后的反向操作无法恢复原值。
// 先与区间边界比较再相加，任意大的 delta 都只会饱和到边界。
func (l Ledger) Apply(c Category, delta int) int {
	lo, hi := Bound(c)
	current := Clamp(c, l[c])

	var next int
	switch {
	case delta > hi-current:
		next = hi
	case delta < lo-current:
		next = lo
	default:
		next = current + delta
	}
	l[c] = next
	return next
}

// ApplyAll 依次应用一组变化量，返回被修改过的类别
func (l Ledger) ApplyAll(deltas []Delta) []Category {
	touched := make([]Category, 0, len(deltas))
	seen := make(map[Category]struct{}, len(deltas))
	for _, d := range deltas {
		l.Apply(d.Category, d.Amount)
		if _, ok := seen[d.Category]; ok {
			continue
		}
		seen[d.Category] = struct{}{}
		touched = append(touched, d.Category)
	}
	return touched
}
