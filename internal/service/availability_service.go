package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"
)

const maxAvailabilitySlots = 70

// SlotInput 每周时段输入
type SlotInput struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// AvailabilityService 老师每周可预约时段服务
type AvailabilityService struct {
	availabilityRepo repository.AvailabilityRepository
}

// NewAvailabilityService 创建可预约时段服务
func NewAvailabilityService(availabilityRepo repository.AvailabilityRepository) *AvailabilityService {
	return &AvailabilityService{availabilityRepo: availabilityRepo}
}

// List 获取老师的每周时段
func (s *AvailabilityService) List(teacherID uint) ([]models.TeacherAvailability, error) {
	if teacherID == 0 {
		return nil, ErrInvalidInput
	}
	return s.availabilityRepo.ListByTeacher(teacherID)
}

// SetWeekly 整体替换老师的每周时段；空列表表示不限制预约时间
func (s *AvailabilityService) SetWeekly(ctx context.Context, teacherID uint, inputs []SlotInput) ([]models.TeacherAvailability, error) {
	if teacherID == 0 {
		return nil, ErrInvalidInput
	}
	if len(inputs) > maxAvailabilitySlots {
		return nil, wrapf(ErrAvailabilityInvalid, "at most %d slots", maxAvailabilitySlots)
	}
	type parsed struct {
		day        int
		start, end int
	}
	items := make([]parsed, 0, len(inputs))
	for _, in := range inputs {
		if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
			return nil, wrapf(ErrAvailabilityInvalid, "day_of_week %d", in.DayOfWeek)
		}
		start, err := parseClock(in.StartTime)
		if err != nil {
			return nil, wrapError(ErrAvailabilityInvalid, err)
		}
		end, err := parseClock(in.EndTime)
		if err != nil {
			return nil, wrapError(ErrAvailabilityInvalid, err)
		}
		if start >= end {
			return nil, wrapf(ErrAvailabilityInvalid, "%s must be before %s", in.StartTime, in.EndTime)
		}
		items = append(items, parsed{day: in.DayOfWeek, start: start, end: end})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].day != items[j].day {
			return items[i].day < items[j].day
		}
		return items[i].start < items[j].start
	})
	slots := make([]models.TeacherAvailability, 0, len(items))
	for i, item := range items {
		if i > 0 && items[i-1].day == item.day && items[i-1].end > item.start {
			return nil, wrapf(ErrAvailabilityInvalid, "slots overlap on day %d", item.day)
		}
		slots = append(slots, models.TeacherAvailability{
			TeacherID: teacherID,
			DayOfWeek: item.day,
			StartTime: formatClock(item.start),
			EndTime:   formatClock(item.end),
		})
	}
	if err := s.availabilityRepo.ReplaceForTeacher(teacherID, slots); err != nil {
		return nil, err
	}
	logger.Infow("availability_updated", "teacher_id", teacherID, "slots", len(slots))
	return s.availabilityRepo.ListByTeacher(teacherID)
}

// slotCovered 判断 [start, end) 是否完整落在某个时段内；未配置时段时视为覆盖
func slotCovered(slots []models.TeacherAvailability, start, end time.Time, loc *time.Location) bool {
	if len(slots) == 0 {
		return true
	}
	if loc == nil {
		loc = time.Local
	}
	localStart := start.In(loc)
	localEnd := end.In(loc)
	day := int(localStart.Weekday())
	startMinute := localStart.Hour()*60 + localStart.Minute()
	endMinute := localEnd.Hour()*60 + localEnd.Minute()
	if localEnd.YearDay() != localStart.YearDay() || localEnd.Year() != localStart.Year() {
		// 跨天只允许恰好结束于午夜
		if endMinute != 0 || localEnd.Sub(localStart) > 24*time.Hour {
			return false
		}
		endMinute = 24 * 60
	}
	for _, slot := range slots {
		if slot.DayOfWeek != day {
			continue
		}
		slotStart, err := parseClock(slot.StartTime)
		if err != nil {
			continue
		}
		slotEnd, err := parseClock(slot.EndTime)
		if err != nil {
			continue
		}
		if startMinute >= slotStart && endMinute <= slotEnd {
			return true
		}
	}
	return false
}

// parseClock 解析 HH:MM，返回当天分钟数，允许 24:00
func parseClock(value string) (int, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	hour, err := strconv.Atoi(value[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	minute, err := strconv.Atoi(value[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	if minute < 0 || minute > 59 || hour < 0 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("invalid time %q", value)
	}
	return hour*60 + minute, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
