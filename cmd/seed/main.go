package main

import (
	"time"

	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	if err := models.InitDefaultAdmin(cfg.App.AdminEmail, cfg.App.AdminPassword); err != nil {
		stdLog.Printf("Failed to init admin: %v", err)
	}

	// 示例账号
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash password: %v", err)
	}
	users := []models.User{
		{Email: "teacher@musictutor.local", DisplayName: "Demo Teacher", Role: constants.RoleTeacher},
		{Email: "student@musictutor.local", DisplayName: "Demo Student", Role: constants.RoleStudent},
	}
	userIDs := map[string]uint{}
	for _, user := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", user.Email).First(&existing).Error; err == nil {
			stdLog.Printf("User already exists: %s", user.Email)
			userIDs[user.Role] = existing.ID
			continue
		}
		user.PasswordHash = string(hash)
		user.Status = constants.UserStatusActive
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create user %s: %v", user.Email, err)
			continue
		}
		stdLog.Printf("Created user: %s", user.Email)
		userIDs[user.Role] = user.ID
	}

	teacherID := userIDs[constants.RoleTeacher]
	if teacherID == 0 {
		stdLog.Fatalf("Teacher account missing, abort seeding courses")
	}

	courses := []models.Course{
		{
			Name:              "Piano Foundations",
			Intro:             "Reading notes, posture and first pieces.",
			Instrument:        "piano",
			Level:             constants.CourseLevelBeginner,
			SingleLessonPrice: models.MustMoney("60"),
			PackageOptions: models.PackageOptions{
				{Lessons: 5, PricePerLesson: models.MustMoney("55"), ValidityDays: 60},
				{Lessons: 10, PricePerLesson: models.MustMoney("50"), ValidityDays: 120},
			},
		},
		{
			Name:              "Jazz Guitar Voicings",
			Intro:             "Shell voicings, comping and walking bass lines.",
			Instrument:        "guitar",
			Level:             constants.CourseLevelIntermediate,
			SingleLessonPrice: models.MustMoney("75"),
			PackageOptions: models.PackageOptions{
				{Lessons: 8, PricePerLesson: models.MustMoney("68"), ValidityDays: 90},
			},
		},
	}
	for _, course := range courses {
		var existing models.Course
		if err := models.DB.Where("name = ? AND teacher_id = ?", course.Name, teacherID).First(&existing).Error; err == nil {
			stdLog.Printf("Course already exists: %s", course.Name)
			continue
		}
		course.TeacherID = teacherID
		course.Status = constants.CourseStatusActive
		course.CancellationDeadlineHours = 24
		if err := models.DB.Create(&course).Error; err != nil {
			stdLog.Printf("Failed to create course %s: %v", course.Name, err)
			continue
		}
		stdLog.Printf("Created course: %s", course.Name)
	}

	// 示例优惠券
	now := time.Now()
	coupon := models.Coupon{
		Name:              "Welcome 10%",
		Code:              "WELCOME10",
		Description:       "10% off the first order",
		DiscountType:      constants.CouponTypePercentage,
		DiscountValue:     models.MustMoney("10"),
		MinimumPurchase:   models.MustMoney("50"),
		MaximumDiscount:   models.MustMoney("30"),
		StartsAt:          now,
		ExpiresAt:         now.AddDate(0, 3, 0),
		UsageLimitTotal:   500,
		UsageLimitPerUser: 1,
		IsActive:          true,
	}
	var existing models.Coupon
	if err := models.DB.Where("code = ?", coupon.Code).First(&existing).Error; err == nil {
		stdLog.Printf("Coupon already exists: %s", coupon.Code)
	} else if err := models.DB.Create(&coupon).Error; err != nil {
		stdLog.Printf("Failed to create coupon %s: %v", coupon.Code, err)
	} else {
		stdLog.Printf("Created coupon: %s", coupon.Code)
	}

	stdLog.Printf("Seed data created successfully")
}
