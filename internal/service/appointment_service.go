package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultLessonMinutes = 60
	maxLessonMinutes     = 240
	maxAppointmentNotes  = 500
)

// openAppointmentStatuses 占用课时余额的预约状态
var openAppointmentStatuses = []string{
	constants.AppointmentStatusScheduled,
	constants.AppointmentStatusConfirmed,
	constants.AppointmentStatusInProgress,
}

// AppointmentService 上课预约服务
type AppointmentService struct {
	appointmentRepo  repository.AppointmentRepository
	orderRepo        repository.OrderRepository
	courseRepo       repository.CourseRepository
	availabilityRepo repository.AvailabilityRepository
	location         *time.Location
}

// NewAppointmentService 创建预约服务，loc 为老师时段的解释时区
func NewAppointmentService(
	appointmentRepo repository.AppointmentRepository,
	orderRepo repository.OrderRepository,
	courseRepo repository.CourseRepository,
	availabilityRepo repository.AvailabilityRepository,
	loc *time.Location,
) *AppointmentService {
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentService{
		appointmentRepo:  appointmentRepo,
		orderRepo:        orderRepo,
		courseRepo:       courseRepo,
		availabilityRepo: availabilityRepo,
		location:         loc,
	}
}

// BookInput 预约输入
type BookInput struct {
	StudentID       uint
	OrderItemID     uint
	StartTime       time.Time
	DurationMinutes int
	LocationType    string
	Location        string
	Notes           string
}

// Book 使用已支付订单项的课时预约上课。可用余额 = 剩余课时 - 未结束的预约数
func (s *AppointmentService) Book(ctx context.Context, input BookInput) (*models.Appointment, error) {
	if input.StudentID == 0 || input.OrderItemID == 0 {
		return nil, ErrInvalidInput
	}
	minutes := input.DurationMinutes
	if minutes == 0 {
		minutes = defaultLessonMinutes
	}
	now := time.Now()
	if minutes < 0 || minutes > maxLessonMinutes || !input.StartTime.After(now) {
		return nil, ErrAppointmentTimeSlot
	}
	endTime := input.StartTime.Add(time.Duration(minutes) * time.Minute)
	locationType := strings.ToLower(strings.TrimSpace(input.LocationType))
	if locationType == "" {
		locationType = constants.LocationTypeOnline
	}
	if locationType != constants.LocationTypeOnline && locationType != constants.LocationTypeInPerson {
		return nil, wrapf(ErrInvalidInput, "unknown location type %q", input.LocationType)
	}
	notes := strings.TrimSpace(input.Notes)
	if utf8.RuneCountInString(notes) > maxAppointmentNotes {
		return nil, wrapf(ErrInvalidInput, "notes exceed %d characters", maxAppointmentNotes)
	}

	var appointment *models.Appointment
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		appointmentRepo := s.appointmentRepo.WithTx(tx)

		item, err := orderRepo.LockItem(input.OrderItemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrOrderNotFound
		}
		order, err := orderRepo.GetByIDAndStudent(item.OrderID, input.StudentID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPaid {
			return wrapf(ErrInvalidTransition, "order %s is %s", order.OrderNo, order.Status)
		}
		if item.ValidUntil != nil && endTime.After(*item.ValidUntil) {
			return ErrOrderItemExpired
		}

		open, err := appointmentRepo.CountOpenByOrderItem(item.ID, openAppointmentStatuses)
		if err != nil {
			return err
		}
		if int64(item.RemainingLessons)-open <= 0 {
			return ErrLessonBalanceEmpty
		}
		overlap, err := appointmentRepo.CountTeacherOverlap(item.TeacherID, input.StartTime, endTime, openAppointmentStatuses)
		if err != nil {
			return err
		}
		if overlap > 0 {
			return ErrTeacherUnavailable
		}
		if s.availabilityRepo != nil {
			slots, err := s.availabilityRepo.WithTx(tx).ListByTeacher(item.TeacherID)
			if err != nil {
				return err
			}
			if !slotCovered(slots, input.StartTime, endTime, s.location) {
				return ErrOutsideAvailability
			}
		}

		appointment = &models.Appointment{
			TeacherID:    item.TeacherID,
			StudentID:    input.StudentID,
			CourseID:     item.CourseID,
			OrderID:      item.OrderID,
			OrderItemID:  item.ID,
			StartTime:    input.StartTime,
			EndTime:      endTime,
			Status:       constants.AppointmentStatusScheduled,
			LocationType: locationType,
			Location:     strings.TrimSpace(input.Location),
			Notes:        notes,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return appointmentRepo.Create(appointment)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("appointment_booked",
		"appointment_id", appointment.ID,
		"order_item_id", appointment.OrderItemID,
		"teacher_id", appointment.TeacherID,
		"student_id", appointment.StudentID,
	)
	return appointment, nil
}

// Confirm 老师确认预约
func (s *AppointmentService) Confirm(ctx context.Context, id uint, actor Actor) (*models.Appointment, error) {
	appointment, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && appointment.TeacherID != actor.UserID {
		return nil, ErrAppointmentForbidden
	}
	if appointment.Status == constants.AppointmentStatusConfirmed {
		return appointment, nil
	}
	ok, err := s.appointmentRepo.TransitionStatus(appointment.ID, []string{constants.AppointmentStatusScheduled}, constants.AppointmentStatusConfirmed, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wrapf(ErrAppointmentTransition, "appointment %d is %s", appointment.ID, appointment.Status)
	}
	return s.get(id)
}

// Cancel 取消预约。学生需在课程规定的截止时间前取消，老师与管理员不受限制
func (s *AppointmentService) Cancel(ctx context.Context, id uint, actor Actor) (*models.Appointment, error) {
	appointment, err := s.get(id)
	if err != nil {
		return nil, err
	}
	isStudent := appointment.StudentID == actor.UserID
	isTeacher := appointment.TeacherID == actor.UserID
	if !actor.IsAdmin() && !isStudent && !isTeacher {
		return nil, ErrAppointmentForbidden
	}
	if appointment.Status == constants.AppointmentStatusCancelled {
		return appointment, nil
	}
	now := time.Now()
	if !actor.IsAdmin() && !isTeacher {
		deadlineHours := defaultCancellationWindow
		course, err := s.courseRepo.GetByID(appointment.CourseID)
		if err != nil {
			return nil, err
		}
		if course != nil {
			deadlineHours = course.CancellationDeadlineHours
		}
		deadline := appointment.StartTime.Add(-time.Duration(deadlineHours) * time.Hour)
		if now.After(deadline) {
			return nil, ErrAppointmentDeadline
		}
	}
	ok, err := s.appointmentRepo.TransitionStatus(appointment.ID, []string{
		constants.AppointmentStatusScheduled,
		constants.AppointmentStatusConfirmed,
	}, constants.AppointmentStatusCancelled, map[string]interface{}{
		"cancelled_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, wrapf(ErrAppointmentTransition, "appointment %d is %s", appointment.ID, appointment.Status)
	}
	return s.get(id)
}

// List 预约列表，学生与老师只能看到自己的预约
func (s *AppointmentService) List(filter repository.AppointmentListFilter, actor Actor) ([]models.Appointment, int64, error) {
	switch actor.Role {
	case constants.RoleStudent:
		filter.StudentID = actor.UserID
		filter.TeacherID = 0
	case constants.RoleTeacher:
		filter.TeacherID = actor.UserID
		filter.StudentID = 0
	}
	return s.appointmentRepo.List(filter)
}

func (s *AppointmentService) get(id uint) (*models.Appointment, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	appointment, err := s.appointmentRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	return appointment, nil
}
