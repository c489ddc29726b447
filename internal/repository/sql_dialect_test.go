package repository

import (
	"strings"
	"testing"
)

func TestLikeOperatorByDialect(t *testing.T) {
	if got := likeOperatorByDialect("postgres"); got != "ILIKE" {
		t.Fatalf("postgres operator want ILIKE got %s", got)
	}
	if got := likeOperatorByDialect("sqlite"); got != "LIKE" {
		t.Fatalf("sqlite operator want LIKE got %s", got)
	}
}

func TestBuildLikeCondition(t *testing.T) {
	condition, argCount := buildLikeCondition(nil, []string{"name", " ", "intro"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	if condition != "name LIKE ? OR intro LIKE ?" {
		t.Fatalf("unexpected condition: %s", condition)
	}

	condition, _ = buildLikeConditionByDialect("postgresql", []string{"code"})
	if !strings.Contains(condition, "code ILIKE ?") {
		t.Fatalf("postgres condition should use ILIKE, got %s", condition)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}

func TestIDListContainsCondition(t *testing.T) {
	condition, args := idListContainsCondition("applicable_course_ids", 12)
	if strings.Count(condition, "applicable_course_ids") != 4 {
		t.Fatalf("condition should reference column 4 times, got %s", condition)
	}
	want := []string{"[12]", "[12,%", "%,12,%", "%,12]"}
	for i, w := range want {
		if args[i] != w {
			t.Fatalf("args[%d] want %s got %v", i, w, args[i])
		}
	}
}
