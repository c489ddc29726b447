package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/models"
)

// nextWeekday 返回至少两天后的指定星期 00:00 (UTC)
func nextWeekday(day time.Weekday) time.Time {
	base := time.Now().UTC().Add(48 * time.Hour)
	base = time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	for base.Weekday() != day {
		base = base.AddDate(0, 0, 1)
	}
	return base
}

func TestSetWeeklyValidatesSlots(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		slots []SlotInput
	}{
		{"bad day", []SlotInput{{DayOfWeek: 7, StartTime: "09:00", EndTime: "10:00"}}},
		{"bad format", []SlotInput{{DayOfWeek: 1, StartTime: "9:00", EndTime: "10:00"}}},
		{"bad minute", []SlotInput{{DayOfWeek: 1, StartTime: "09:60", EndTime: "10:00"}}},
		{"reversed", []SlotInput{{DayOfWeek: 1, StartTime: "12:00", EndTime: "10:00"}}},
		{"overlap", []SlotInput{
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
			{DayOfWeek: 1, StartTime: "11:30", EndTime: "13:00"},
		}},
	}
	for _, tc := range cases {
		if _, err := f.availabilityService.SetWeekly(ctx, 9, tc.slots); !errors.Is(err, ErrAvailabilityInvalid) {
			t.Fatalf("%s: expected ErrAvailabilityInvalid, got %v", tc.name, err)
		}
	}

	slots, err := f.availabilityService.SetWeekly(ctx, 9, []SlotInput{
		{DayOfWeek: 3, StartTime: "14:00", EndTime: "18:00"},
		{DayOfWeek: 1, StartTime: "13:00", EndTime: "15:00"},
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00"},
	})
	if err != nil {
		t.Fatalf("set weekly failed: %v", err)
	}
	if len(slots) != 3 || slots[0].DayOfWeek != 1 || slots[0].StartTime != "09:00" || slots[2].DayOfWeek != 3 {
		t.Fatalf("unexpected slots: %+v", slots)
	}

	// 再次设置会整体替换
	slots, err = f.availabilityService.SetWeekly(ctx, 9, []SlotInput{{DayOfWeek: 5, StartTime: "10:00", EndTime: "24:00"}})
	if err != nil {
		t.Fatalf("replace weekly failed: %v", err)
	}
	if len(slots) != 1 || slots[0].EndTime != "24:00" {
		t.Fatalf("unexpected slots after replace: %+v", slots)
	}
}

func TestBookRejectsSlotOutsideAvailability(t *testing.T) {
	f := setupServiceFixture(t)
	ctx := context.Background()
	student := f.createUser(t, "student@example.com", constants.RoleStudent)
	course := f.createCourse(t, 9, "50", models.PackageOption{Lessons: 3, PricePerLesson: models.MustMoney("45")})
	order := f.paidOrder(t, student.ID, course, constants.PackageTypePackage, 3)
	itemID := order.Items[0].ID

	if _, err := f.availabilityService.SetWeekly(ctx, course.TeacherID, []SlotInput{
		{DayOfWeek: int(time.Monday), StartTime: "09:00", EndTime: "12:00"},
	}); err != nil {
		t.Fatalf("set weekly failed: %v", err)
	}
	monday := nextWeekday(time.Monday)

	// 结束时间越过时段
	if _, err := f.appointmentService.Book(ctx, BookInput{StudentID: student.ID, OrderItemID: itemID, StartTime: monday.Add(11*time.Hour + 30*time.Minute)}); !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability for overrun, got %v", err)
	}
	// 其他日期
	if _, err := f.appointmentService.Book(ctx, BookInput{StudentID: student.ID, OrderItemID: itemID, StartTime: monday.AddDate(0, 0, 1).Add(10 * time.Hour)}); !errors.Is(err, ErrOutsideAvailability) {
		t.Fatalf("expected ErrOutsideAvailability for tuesday, got %v", err)
	}
	appointment, err := f.appointmentService.Book(ctx, BookInput{StudentID: student.ID, OrderItemID: itemID, StartTime: monday.Add(11 * time.Hour)})
	if err != nil {
		t.Fatalf("booking inside availability failed: %v", err)
	}
	if !appointment.EndTime.Equal(monday.Add(12 * time.Hour)) {
		t.Fatalf("unexpected end time %s", appointment.EndTime)
	}

	// 清空时段后不再限制
	if _, err := f.availabilityService.SetWeekly(ctx, course.TeacherID, nil); err != nil {
		t.Fatalf("clear weekly failed: %v", err)
	}
	if _, err := f.appointmentService.Book(ctx, BookInput{StudentID: student.ID, OrderItemID: itemID, StartTime: monday.AddDate(0, 0, 1).Add(10 * time.Hour)}); err != nil {
		t.Fatalf("booking without availability failed: %v", err)
	}
}

func TestSlotCoveredUsesLocation(t *testing.T) {
	shanghai := time.FixedZone("UTC+8", 8*3600)
	slots := []models.TeacherAvailability{{DayOfWeek: int(time.Monday), StartTime: "09:00", EndTime: "12:00"}}
	monday := nextWeekday(time.Monday)
	start := time.Date(monday.Year(), monday.Month(), monday.Day(), 9, 0, 0, 0, shanghai)

	if !slotCovered(slots, start, start.Add(time.Hour), shanghai) {
		t.Fatalf("09:00 local should be covered")
	}
	if slotCovered(slots, start, start.Add(time.Hour), time.UTC) {
		t.Fatalf("01:00 UTC should not be covered")
	}
	if !slotCovered(nil, start, start.Add(time.Hour), time.UTC) {
		t.Fatalf("empty availability should not restrict")
	}
}
