package gamification

import "math"

const (
	// MaxLevel 等级上限
	MaxLevel = 100
	// MaxDifficulty 难度上限，超过的按上限计算经验
	MaxDifficulty = 10

	baseLevelExp   = 100.0
	levelGrowth    = 1.3
	baseTaskExp    = 10
	expPerDiffStep = 5
)

// ExpForLevel 返回达到指定等级所需的累计经验。1 级为 0，之后为 floor(100 * 1.3^(level-1))
func ExpForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return int(math.Floor(baseLevelExp * math.Pow(levelGrowth, float64(level-1))))
}

// LevelForExp 返回满足 ExpForLevel(L) <= exp 的最大等级，封顶 MaxLevel
func LevelForExp(exp int) int {
	level := 1
	for level < MaxLevel && ExpForLevel(level+1) <= exp {
		level++
	}
	return level
}

// BaseExp 计算一次完成可获得的经验，限时任务乘以 1.5 后向下取整。
// 取消完成时扣除同一数值。
func BaseExp(task TaskSpec) int {
	difficulty := task.Difficulty
	if difficulty > MaxDifficulty {
		difficulty = MaxDifficulty
	}
	exp := baseTaskExp + expPerDiffStep*difficulty
	if task.IsTimeLimited {
		exp = exp * 3 / 2
	}
	return exp
}

// Progress 描述当前等级内的进度
type Progress struct {
	Level               int
	Experience          int
	CurrentLevelFloor   int
	NextLevelThreshold  int
	ProgressWithinLevel int
	Percentage          float64
}

// LevelProgress 根据累计经验计算等级进度
func LevelProgress(experience int) Progress {
	if experience < 0 {
		experience = 0
	}
	level := LevelForExp(experience)
	floor := ExpForLevel(level)

	p := Progress{
		Level:               level,
		Experience:          experience,
		CurrentLevelFloor:   floor,
		ProgressWithinLevel: experience - floor,
	}

	if level >= MaxLevel {
		p.NextLevelThreshold = floor
		p.Percentage = 100
		return p
	}

	next := ExpForLevel(level + 1)
	p.NextLevelThreshold = next
	span := next - floor
	if span > 0 {
		p.Percentage = math.Round(float64(p.ProgressWithinLevel)/float64(span)*1000) / 10
	}
	return p
}
