package service

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTaskServiceCreateDefaultsReward(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTaskService(gdb)

	task, err := svc.Create(TaskInput{
		Title:      "<b>晨读</b>",
		Tip:        "<script>alert(1)</script>读 20 页",
		Category:   " Knowledge ",
		Difficulty: 3,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if task.Title != "晨读" {
		t.Fatalf("expected sanitized title, got %q", task.Title)
	}
	if strings.Contains(task.Tip, "script") {
		t.Fatalf("tip should be sanitized, got %q", task.Tip)
	}
	if task.Category != "knowledge" {
		t.Fatalf("expected normalized category, got %q", task.Category)
	}
	if task.RewardPoints != 10 {
		t.Fatalf("expected default reward points, got %d", task.RewardPoints)
	}
	if task.RewardExpression != "+5 Knowledge, +2 Discipline" {
		t.Fatalf("unexpected default expression: %q", task.RewardExpression)
	}

	loaded, err := svc.Get(task.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded.Title != task.Title {
		t.Fatalf("unexpected loaded task: %+v", loaded)
	}
}

func TestTaskServiceCreateValidation(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTaskService(gdb)

	cases := []TaskInput{
		{Title: "", Category: "energy", Difficulty: 1},
		{Title: "跑步", Category: "energy", Difficulty: 0},
		{Title: "跑步", Category: "energy", Difficulty: 1, RewardPoints: -1},
		{Title: "跑步", Category: " ", Difficulty: 1},
		{Title: "跑步", Category: "energy", Difficulty: 11},
		{Title: "跑步", Category: "energy", Difficulty: 1000},
	}
	for i, input := range cases {
		if _, err := svc.Create(input); !errors.Is(err, ErrTaskInvalidInput) {
			t.Fatalf("case %d: expected ErrTaskInvalidInput, got %v", i, err)
		}
	}

	if _, err := svc.Get(42); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestTaskServiceListForUser(t *testing.T) {
	gdb := setupServiceTestDB(t)
	svc := NewTaskService(gdb)
	alice := mustCreateUser(t, gdb, "alice")
	bob := mustCreateUser(t, gdb, "bob")

	public := mustCreateTask(t, gdb, TaskInput{Title: "喝水", Category: "wellness", Difficulty: 1})
	mine := mustCreateTask(t, gdb, TaskInput{UserID: alice.ID, Title: "写代码", Category: "intelligence", Difficulty: 2})
	mustCreateTask(t, gdb, TaskInput{UserID: bob.ID, Title: "弹琴", Category: "charisma", Difficulty: 1})

	progress := newTestProgressService(gdb, 2024, time.June, 11)
	if _, err := progress.Complete(alice.ID, mine.ID); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}

	views, err := svc.ListForUser(alice.ID, progress.Today())
	if err != nil {
		t.Fatalf("ListForUser returned error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected public and own task, got %d", len(views))
	}
	if views[0].Task.ID != public.ID || views[0].CompletedToday {
		t.Fatalf("unexpected public task view: %+v", views[0])
	}
	if views[1].Task.ID != mine.ID || !views[1].CompletedToday {
		t.Fatalf("unexpected own task view: %+v", views[1])
	}

	// 次日不再标记为已完成
	views, err = svc.ListForUser(alice.ID, progress.Today().AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ListForUser returned error: %v", err)
	}
	if views[1].CompletedToday {
		t.Fatal("completion should not carry over to the next day")
	}
}

func TestRenderTip(t *testing.T) {
	html := RenderTip("**专注** 25 分钟 <script>x()</script> https://example.com")
	if !strings.Contains(html, "<strong>专注</strong>") {
		t.Fatalf("expected markdown rendering, got %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("expected script to be stripped, got %q", html)
	}
	if !strings.Contains(html, `href="https://example.com"`) {
		t.Fatalf("expected autolinked url, got %q", html)
	}
	if RenderTip("   ") != "" {
		t.Fatal("expected empty tip to render empty")
	}
}
