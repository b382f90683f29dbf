package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/levelup/internal/db"
	"github.com/levelup/internal/gamification"
	"gorm.io/gorm"
)

func newTestProgressService(gdb *gorm.DB, year int, month time.Month, day int) *ProgressService {
	return NewProgressService(gdb, nil).WithClock(fixedClock(year, month, day)).WithLocation(time.UTC)
}

func attributeOf(t *testing.T, gdb *gorm.DB, userID uint, category gamification.Category) int {
	t.Helper()
	ledger, err := loadLedger(gdb, userID)
	if err != nil {
		t.Fatalf("loadLedger returned error: %v", err)
	}
	return ledger.Get(category)
}

func TestProgressServiceCompleteAndToggle(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "alice")
	task := mustCreateTask(t, gdb, TaskInput{
		Title:            "读一章书",
		Category:         "intelligence",
		Difficulty:       2,
		RewardPoints:     10,
		RewardExpression: "+5 Intelligence, +1 Discipline",
	})

	svc := newTestProgressService(gdb, 2024, time.June, 11)

	result, err := svc.Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !result.Success || result.Action != gamification.ActionCompleted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.NewExperience != 20 || result.ExperienceDelta != 20 {
		t.Fatalf("expected 20 experience, got %d (delta %d)", result.NewExperience, result.ExperienceDelta)
	}
	if result.CurrentStreak != 1 || result.MaxStreak != 1 {
		t.Fatalf("unexpected streak: %d/%d", result.CurrentStreak, result.MaxStreak)
	}
	if result.EventID == "" {
		t.Fatal("expected event id")
	}
	if got := attributeOf(t, gdb, user.ID, gamification.CategoryIntelligence); got != 5 {
		t.Fatalf("expected intelligence 5, got %d", got)
	}
	if got := attributeOf(t, gdb, user.ID, gamification.CategoryDiscipline); got != 1 {
		t.Fatalf("expected discipline 1, got %d", got)
	}

	views, err := NewTaskService(gdb).ListForUser(user.ID, svc.Today())
	if err != nil {
		t.Fatalf("ListForUser returned error: %v", err)
	}
	if len(views) != 1 || !views[0].CompletedToday {
		t.Fatalf("expected task to be completed today: %+v", views)
	}

	// 同一天再次完成即撤销
	toggled, err := svc.Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("second Complete returned error: %v", err)
	}
	if toggled.Action != gamification.ActionUncompleted {
		t.Fatalf("expected toggle to uncomplete, got %s", toggled.Action)
	}
	if toggled.NewExperience != 0 {
		t.Fatalf("expected experience back to 0, got %d", toggled.NewExperience)
	}
	if toggled.CurrentStreak != 1 {
		t.Fatalf("streak must not be decremented, got %d", toggled.CurrentStreak)
	}
	if got := attributeOf(t, gdb, user.ID, gamification.CategoryIntelligence); got != 0 {
		t.Fatalf("expected intelligence 0, got %d", got)
	}

	var count int64
	if err := gdb.Model(&db.CompletionEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected completion event to be deleted, got %d", count)
	}
}

func TestProgressServiceStreakContinuesFromYesterday(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "bob")
	mustUpdateUser(t, gdb, user.ID, map[string]any{
		"current_streak":     2,
		"max_streak":         2,
		"last_activity_date": dayPtr(2024, time.June, 10),
	})
	task := mustCreateTask(t, gdb, TaskInput{Title: "冥想", Category: "wellness", Difficulty: 1})

	svc := newTestProgressService(gdb, 2024, time.June, 11)
	result, err := svc.Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.CurrentStreak != 3 || result.MaxStreak != 3 {
		t.Fatalf("expected streak 3/3, got %d/%d", result.CurrentStreak, result.MaxStreak)
	}

	reloaded, err := NewUserService(gdb).Get(user.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.LastActivityDate == nil || !reloaded.LastActivityDate.Equal(*dayPtr(2024, time.June, 11)) {
		t.Fatalf("unexpected last activity: %v", reloaded.LastActivityDate)
	}
}

func TestProgressServiceStreakRestartsAfterGap(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "carol")
	mustUpdateUser(t, gdb, user.ID, map[string]any{
		"current_streak":     5,
		"max_streak":         5,
		"last_activity_date": dayPtr(2024, time.June, 1),
	})
	task := mustCreateTask(t, gdb, TaskInput{Title: "跑步", Category: "energy", Difficulty: 1})

	result, err := newTestProgressService(gdb, 2024, time.June, 10).Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.CurrentStreak != 1 || result.MaxStreak != 5 {
		t.Fatalf("expected streak 1/5, got %d/%d", result.CurrentStreak, result.MaxStreak)
	}
}

func TestProgressServiceLevelUpUnlocksRewards(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "dave")
	mustUpdateUser(t, gdb, user.ID, map[string]any{"experience": 120})
	task := mustCreateTask(t, gdb, TaskInput{Title: "写周报", Category: "discipline", Difficulty: 2})

	rewards := NewRewardService(gdb)
	if _, err := rewards.Import([]RewardCatalogEntry{
		{Name: "Starter Badge", UnlockLevel: 1},
		{Name: "Apprentice Badge", UnlockLevel: 2},
		{Name: "Adept Badge", UnlockLevel: 3},
	}); err != nil {
		t.Fatalf("Import returned error: %v", err)
	}

	svc := newTestProgressService(gdb, 2024, time.June, 11)
	result, err := svc.Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !result.LeveledUp || result.OldLevel != 1 || result.NewLevel != 2 {
		t.Fatalf("expected level 1 -> 2, got %+v", result)
	}
	if len(result.UnlockedRewards) != 2 {
		t.Fatalf("expected 2 unlocked rewards, got %d", len(result.UnlockedRewards))
	}
	if result.UnlockedRewards[0].Name != "Starter Badge" || result.UnlockedRewards[1].Name != "Apprentice Badge" {
		t.Fatalf("unexpected unlock order: %+v", result.UnlockedRewards)
	}

	undo, err := svc.Uncomplete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Uncomplete returned error: %v", err)
	}
	if !undo.Success || undo.NewLevel != 1 || undo.NewExperience != 120 {
		t.Fatalf("unexpected uncomplete result: %+v", undo)
	}

	// 奖励不会被收回，再次升级也不会重复解锁
	unlocked, err := rewards.ListForUser(user.ID)
	if err != nil {
		t.Fatalf("ListForUser returned error: %v", err)
	}
	if len(unlocked) != 2 {
		t.Fatalf("expected rewards to survive uncomplete, got %d", len(unlocked))
	}

	again, err := svc.Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Complete again returned error: %v", err)
	}
	if !again.LeveledUp || len(again.UnlockedRewards) != 0 {
		t.Fatalf("expected level-up without new unlocks, got %+v", again)
	}
}

func TestProgressServiceUncompleteFloorsExperience(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "erin")
	mustUpdateUser(t, gdb, user.ID, map[string]any{"experience": 5})
	task := mustCreateTask(t, gdb, TaskInput{Title: "整理书桌", Category: "discipline", Difficulty: 1})

	svc := newTestProgressService(gdb, 2024, time.June, 11)
	event := db.CompletionEvent{
		PublicID:         uuid.NewString(),
		UserID:           user.ID,
		TaskID:           task.ID,
		Day:              svc.Today(),
		EarnedExperience: 15,
	}
	if err := gdb.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed completion: %v", err)
	}

	result, err := svc.Uncomplete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Uncomplete returned error: %v", err)
	}
	if !result.Success || result.NewExperience != 0 || result.NewLevel != 1 {
		t.Fatalf("expected experience floored at 0, got %+v", result)
	}
}

func TestProgressServiceUncompleteWithoutRecord(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "frank")
	task := mustCreateTask(t, gdb, TaskInput{Title: "背单词", Category: "knowledge", Difficulty: 1})

	result, err := newTestProgressService(gdb, 2024, time.June, 11).Uncomplete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Uncomplete returned error: %v", err)
	}
	if result.Success {
		t.Fatal("expected success=false when nothing was completed")
	}
}

func TestProgressServiceSkipsMalformedClauses(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "grace")
	task := mustCreateTask(t, gdb, TaskInput{
		Title:            "练字",
		Category:         "discipline",
		Difficulty:       1,
		RewardExpression: "+3 Discipline, 5 Stress, +abc Energy",
	})

	result, err := newTestProgressService(gdb, 2024, time.June, 11).Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if len(result.Deltas) != 1 || result.Deltas[0].Amount != 3 {
		t.Fatalf("expected only the discipline clause to apply, got %+v", result.Deltas)
	}
	if got := attributeOf(t, gdb, user.ID, gamification.CategoryStress); got != 0 {
		t.Fatalf("stress must stay untouched, got %d", got)
	}
}

func TestProgressServiceMissingEntities(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "heidi")
	svc := newTestProgressService(gdb, 2024, time.June, 11)

	if _, err := svc.Complete(user.ID, 999); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if _, err := svc.Complete(999, 1); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.CheckIn(999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateCompletionEventDetectsConflict(t *testing.T) {
	gdb := setupServiceTestDB(t)
	day := time.Date(2024, time.June, 11, 0, 0, 0, 0, time.UTC)

	first := &db.CompletionEvent{PublicID: uuid.NewString(), UserID: 1, TaskID: 1, Day: day, EarnedExperience: 15}
	if err := createCompletionEvent(gdb, first); err != nil {
		t.Fatalf("first insert returned error: %v", err)
	}

	second := &db.CompletionEvent{PublicID: uuid.NewString(), UserID: 1, TaskID: 1, Day: day, EarnedExperience: 15}
	if err := createCompletionEvent(gdb, second); !errors.Is(err, ErrConcurrentCompletion) {
		t.Fatalf("expected ErrConcurrentCompletion, got %v", err)
	}
}

// registerRivalCompletion 在 ProgressService 插入完成记录前，用同一事务先写入一条相同 (user, task, day) 的记录，
// 模拟另一个请求在查询与插入之间抢先完成
func registerRivalCompletion(t *testing.T, gdb *gorm.DB) *bool {
	t.Helper()
	injected := false
	err := gdb.Callback().Create().Before("gorm:create").Register("levelup:rival_completion", func(tx *gorm.DB) {
		event, ok := tx.Statement.Dest.(*db.CompletionEvent)
		if !ok || injected {
			return
		}
		injected = true
		rival := db.CompletionEvent{
			PublicID:         uuid.NewString(),
			UserID:           event.UserID,
			TaskID:           event.TaskID,
			Day:              event.Day,
			EarnedExperience: event.EarnedExperience,
		}
		if err := tx.Session(&gorm.Session{NewDB: true, SkipDefaultTransaction: true}).Create(&rival).Error; err != nil {
			tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}
	return &injected
}

func TestProgressServiceCompleteConflictBecomesAlreadyCompleted(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "kate")
	task := mustCreateTask(t, gdb, TaskInput{
		Title:            "写周报",
		Category:         "discipline",
		Difficulty:       1,
		RewardExpression: "+2 Discipline",
	})
	injected := registerRivalCompletion(t, gdb)

	svc := newTestProgressService(gdb, 2024, time.June, 11)
	result, err := svc.Complete(user.ID, task.ID)
	if err != nil {
		t.Fatalf("expected conflict to be absorbed, got error: %v", err)
	}
	if !*injected {
		t.Fatal("expected rival completion to be inserted")
	}
	if !result.Success || !result.AlreadyCompleted || result.Action != gamification.ActionCompleted {
		t.Fatalf("expected already-completed no-op, got %+v", result)
	}
	if result.LeveledUp || result.EventID != "" || result.ExperienceDelta != 0 {
		t.Fatalf("expected no changes reported, got %+v", result)
	}

	// 本次调用的写入全部回滚
	reloaded, err := NewUserService(gdb).Get(user.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.Experience != 0 || reloaded.CurrentStreak != 0 {
		t.Fatalf("expected user untouched, got exp=%d streak=%d", reloaded.Experience, reloaded.CurrentStreak)
	}
	if got := attributeOf(t, gdb, user.ID, gamification.CategoryDiscipline); got != 0 {
		t.Fatalf("expected discipline untouched, got %d", got)
	}
}

func TestProgressServiceConcurrentCompleteNeverFails(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "leo")
	task := mustCreateTask(t, gdb, TaskInput{
		Title:            "拉伸",
		Category:         "energy",
		Difficulty:       1,
		RewardExpression: "+1 Energy",
	})
	svc := newTestProgressService(gdb, 2024, time.June, 11)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		results []*CompletionResult
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			result, err := svc.Complete(user.ID, task.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results = append(results, result)
		}()
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("expected no errors from concurrent Complete, got %d: %v", len(errs), errs[0])
	}

	completed, uncompleted := 0, 0
	for _, result := range results {
		switch {
		case result.AlreadyCompleted:
		case result.Action == gamification.ActionCompleted:
			completed++
		case result.Action == gamification.ActionUncompleted:
			uncompleted++
		}
	}

	var events int64
	gdb.Model(&db.CompletionEvent{}).Where("user_id = ? AND task_id = ?", user.ID, task.ID).Count(&events)
	if int64(completed-uncompleted) != events {
		t.Fatalf("completed=%d uncompleted=%d but %d events stored", completed, uncompleted, events)
	}

	reloaded, err := NewUserService(gdb).Get(user.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.Experience != int(events)*15 {
		t.Fatalf("expected experience %d, got %d", events*15, reloaded.Experience)
	}
}

func TestProgressServiceRejectsOtherUsersPrivateTask(t *testing.T) {
	gdb := setupServiceTestDB(t)
	owner := mustCreateUser(t, gdb, "mia")
	other := mustCreateUser(t, gdb, "nick")
	private := mustCreateTask(t, gdb, TaskInput{UserID: owner.ID, Title: "私人计划", Category: "discipline", Difficulty: 4})
	public := mustCreateTask(t, gdb, TaskInput{Title: "公共任务", Category: "energy", Difficulty: 1})

	svc := newTestProgressService(gdb, 2024, time.June, 11)

	if _, err := svc.Complete(other.ID, private.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for foreign task, got %v", err)
	}
	if _, err := svc.Uncomplete(other.ID, private.ID); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound on uncomplete, got %v", err)
	}
	reloaded, err := NewUserService(gdb).Get(other.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.Experience != 0 {
		t.Fatalf("expected no experience from foreign task, got %d", reloaded.Experience)
	}

	if _, err := svc.Complete(owner.ID, private.ID); err != nil {
		t.Fatalf("owner Complete returned error: %v", err)
	}
	if _, err := svc.Complete(other.ID, public.ID); err != nil {
		t.Fatalf("public Complete returned error: %v", err)
	}
}

func TestProgressServiceCheckIn(t *testing.T) {
	gdb := setupServiceTestDB(t)
	stale := mustCreateUser(t, gdb, "ivan")
	mustUpdateUser(t, gdb, stale.ID, map[string]any{
		"current_streak":     4,
		"max_streak":         6,
		"last_activity_date": dayPtr(2024, time.June, 1),
	})
	fresh := mustCreateUser(t, gdb, "judy")
	mustUpdateUser(t, gdb, fresh.ID, map[string]any{
		"current_streak":     2,
		"max_streak":         2,
		"last_activity_date": dayPtr(2024, time.June, 9),
	})

	svc := newTestProgressService(gdb, 2024, time.June, 10)

	result, err := svc.CheckIn(stale.ID)
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if !result.Reset || result.CurrentStreak != 0 || result.MaxStreak != 6 {
		t.Fatalf("expected reset to 0 keeping max 6, got %+v", result)
	}

	result, err = svc.CheckIn(fresh.ID)
	if err != nil {
		t.Fatalf("CheckIn returned error: %v", err)
	}
	if result.Reset || result.CurrentStreak != 2 {
		t.Fatalf("expected streak kept, got %+v", result)
	}
}

func TestProgressServiceSweepInactive(t *testing.T) {
	gdb := setupServiceTestDB(t)
	stale := mustCreateUser(t, gdb, "kate")
	mustUpdateUser(t, gdb, stale.ID, map[string]any{
		"current_streak":     3,
		"max_streak":         3,
		"last_activity_date": dayPtr(2024, time.June, 2),
	})
	fresh := mustCreateUser(t, gdb, "leo")
	mustUpdateUser(t, gdb, fresh.ID, map[string]any{
		"current_streak":     1,
		"max_streak":         1,
		"last_activity_date": dayPtr(2024, time.June, 10),
	})
	mustCreateUser(t, gdb, "mia")

	reset, err := newTestProgressService(gdb, 2024, time.June, 10).SweepInactive()
	if err != nil {
		t.Fatalf("SweepInactive returned error: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}

	users := NewUserService(gdb)
	reloaded, err := users.Get(stale.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.CurrentStreak != 0 || reloaded.MaxStreak != 3 {
		t.Fatalf("unexpected stale user streak: %d/%d", reloaded.CurrentStreak, reloaded.MaxStreak)
	}
	kept, err := users.Get(fresh.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if kept.CurrentStreak != 1 {
		t.Fatalf("fresh user streak should be kept, got %d", kept.CurrentStreak)
	}
}

func TestProgressServiceSweepSkipsUserActiveAfterScan(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "olga")
	mustUpdateUser(t, gdb, user.ID, map[string]any{
		"current_streak":     5,
		"max_streak":         5,
		"last_activity_date": dayPtr(2024, time.June, 8),
	})

	// 扫描结束后、清零之前，用户当天完成了任务
	today := dayPtr(2024, time.June, 10)
	activated := false
	err := gdb.Callback().Query().After("gorm:query").Register("levelup:activity_during_sweep", func(tx *gorm.DB) {
		if activated || tx.Statement.Table != "users" {
			return
		}
		activated = true
		if err := tx.Session(&gorm.Session{NewDB: true, SkipDefaultTransaction: true}).
			Model(&db.User{}).Where("id = ?", user.ID).
			Updates(map[string]any{"current_streak": 1, "last_activity_date": today}).Error; err != nil {
			tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatalf("failed to register callback: %v", err)
	}

	reset, err := newTestProgressService(gdb, 2024, time.June, 10).SweepInactive()
	if err != nil {
		t.Fatalf("SweepInactive returned error: %v", err)
	}
	if !activated {
		t.Fatal("expected activity to be recorded during the sweep")
	}
	if reset != 0 {
		t.Fatalf("expected no reset, got %d", reset)
	}

	reloaded, err := NewUserService(gdb).Get(user.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if reloaded.CurrentStreak != 1 {
		t.Fatalf("expected fresh streak 1 to survive, got %d", reloaded.CurrentStreak)
	}
}

func TestProgressServiceLevelProgress(t *testing.T) {
	gdb := setupServiceTestDB(t)
	user := mustCreateUser(t, gdb, "nina")
	mustUpdateUser(t, gdb, user.ID, map[string]any{"experience": 150})

	progress, err := newTestProgressService(gdb, 2024, time.June, 11).LevelProgress(user.ID)
	if err != nil {
		t.Fatalf("LevelProgress returned error: %v", err)
	}
	if progress.Level != 2 || progress.CurrentLevelFloor != 130 || progress.NextLevelThreshold != 169 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
}
