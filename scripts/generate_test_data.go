package main

import (
	"fmt"
	"log"
	"time"

	"github.com/levelup/internal/config"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/logging"
	"github.com/levelup/internal/service"
)

const (
	demoUsername    = "demo"
	demoHistoryDays = 6
)

type seedTask struct {
	title      string
	tip        string
	category   string
	difficulty int
	timeLimit  bool
	reward     string
}

var seedTasks = []seedTask{
	{title: "晨读 30 分钟", tip: "选一本**非虚构**读物", category: "knowledge", difficulty: 1, reward: "+3 Knowledge, +1 Discipline"},
	{title: "刷一道算法题", tip: "限时 45 分钟", category: "intelligence", difficulty: 3, timeLimit: true, reward: "+5 Intelligence, +2 Discipline"},
	{title: "跑步 5 公里", category: "energy", difficulty: 2, reward: "+4 Energy, -3 Stress"},
	{title: "冥想 10 分钟", category: "wellness", difficulty: 1, reward: "+2 Wellness, -5 Stress"},
	{title: "给老朋友打个电话", category: "social", difficulty: 1},
	{title: "公开分享一次", category: "charisma", difficulty: 4, reward: "+6 Charisma, +3 Stress"},
}

var seedRewards = []service.RewardCatalogEntry{
	{Name: "初出茅庐", Description: "完成第一次升级", UnlockLevel: 2},
	{Name: "小有所成", Description: "达到 5 级", UnlockLevel: 5},
	{Name: "持之以恒", Description: "达到 10 级", UnlockLevel: 10},
	{Name: "登堂入室", Description: "达到 20 级", UnlockLevel: 20},
}

// 测试数据生成器
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	if err := createTestUsers(); err != nil {
		log.Fatal(err)
	}
	if err := createTestTasks(); err != nil {
		log.Fatal(err)
	}
	if err := createTestRewards(); err != nil {
		log.Fatal(err)
	}
	if err := createTestGoal(); err != nil {
		log.Fatal(err)
	}
	if err := simulateHistory(time.Now().In(cfg.Location())); err != nil {
		log.Fatal(err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Printf("用户: %s, testuser\n", demoUsername)
	fmt.Printf("任务: %d 个公共任务\n", len(seedTasks))
}

// 创建测试用户
func createTestUsers() error {
	users := service.NewUserService(db.DB)
	for _, name := range []string{demoUsername, "testuser"} {
		if _, _, err := users.GetOrCreate(name); err != nil {
			return fmt.Errorf("创建用户 %s 失败: %w", name, err)
		}
	}
	fmt.Println("✅ 测试用户创建完成")
	return nil
}

// 创建公共任务，已有任务时跳过
func createTestTasks() error {
	var count int64
	if err := db.DB.Model(&db.Task{}).Where("user_id = 0").Count(&count).Error; err != nil {
		return fmt.Errorf("统计任务失败: %w", err)
	}
	if count > 0 {
		fmt.Println("任务已存在，跳过创建")
		return nil
	}

	tasks := service.NewTaskService(db.DB)
	for _, item := range seedTasks {
		if _, err := tasks.Create(service.TaskInput{
			Title:            item.title,
			Tip:              item.tip,
			Category:         item.category,
			Difficulty:       item.difficulty,
			IsTimeLimited:    item.timeLimit,
			RewardExpression: item.reward,
		}); err != nil {
			return fmt.Errorf("创建任务 %s 失败: %w", item.title, err)
		}
	}
	fmt.Println("✅ 测试任务创建完成")
	return nil
}

// 创建奖励目录
func createTestRewards() error {
	if _, err := service.NewRewardService(db.DB).Import(seedRewards); err != nil {
		return fmt.Errorf("导入奖励失败: %w", err)
	}
	fmt.Println("✅ 奖励目录导入完成")
	return nil
}

// 为 demo 用户设置主目标，重复执行时覆盖
func createTestGoal() error {
	user, err := service.NewUserService(db.DB).GetByUsername(demoUsername)
	if err != nil {
		return fmt.Errorf("查找 demo 用户失败: %w", err)
	}
	if _, err := service.NewGoalService(db.DB).Save(user.ID, service.GoalInput{
		Title:       "三个月内养成早起习惯",
		Description: "每天 7 点前起床并完成晨读",
		SubGoals: []service.SubGoalInput{
			{Title: "连续一周 7 点前起床", Completed: true},
			{Title: "连续一个月完成晨读"},
			{Title: "整理读书笔记"},
		},
	}); err != nil {
		return fmt.Errorf("设置主目标失败: %w", err)
	}
	fmt.Println("✅ 主目标设置完成")
	return nil
}

// simulateHistory 让 demo 用户在截至 today 的若干天里每天完成一部分任务
func simulateHistory(today time.Time) error {
	user, err := service.NewUserService(db.DB).GetByUsername(demoUsername)
	if err != nil {
		return fmt.Errorf("查找 demo 用户失败: %w", err)
	}

	var tasks []db.Task
	if err := db.DB.Where("user_id = 0").Order("id ASC").Find(&tasks).Error; err != nil {
		return fmt.Errorf("读取任务失败: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	for offset := demoHistoryDays - 1; offset >= 0; offset-- {
		day := today.AddDate(0, 0, -offset)
		progress := service.NewProgressService(db.DB, logging.Discard()).
			WithLocation(today.Location()).
			WithClock(func() time.Time { return day })

		views, err := service.NewTaskService(db.DB).ListForUser(user.ID, progress.Today())
		if err != nil {
			return err
		}
		// 每天完成的任务数在 2 到 len(tasks) 之间轮换，已完成的跳过以免切换回未完成
		quota := len(tasks)
		if len(tasks) > 2 {
			quota = 2 + offset%(len(tasks)-1)
		}
		for i, view := range views {
			if i >= quota {
				break
			}
			if view.CompletedToday {
				continue
			}
			if _, err := progress.Complete(user.ID, view.Task.ID); err != nil {
				return fmt.Errorf("模拟完成任务失败: %w", err)
			}
		}
	}

	fmt.Println("✅ 历史完成记录生成完成")
	return nil
}
