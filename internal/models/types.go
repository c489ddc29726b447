package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

func scanJSONBytes(value interface{}) ([]byte, bool, error) {
	switch v := value.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return v, len(v) > 0, nil
	case string:
		return []byte(v), v != "", nil
	default:
		return nil, false, fmt.Errorf("unsupported json column type %T", value)
	}
}

// IDList JSON 存储的 ID 集合（适用课程、适用老师等）
type IDList []uint

// Value 实现 driver.Valuer 接口
func (l IDList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (l *IDList) Scan(value interface{}) error {
	raw, ok, err := scanJSONBytes(value)
	if err != nil {
		return err
	}
	if !ok {
		*l = IDList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Contains 判断集合是否包含指定 ID
func (l IDList) Contains(id uint) bool {
	for _, item := range l {
		if item == id {
			return true
		}
	}
	return false
}

// StringList JSON 存储的字符串集合
type StringList []string

// Value 实现 driver.Valuer 接口
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (l *StringList) Scan(value interface{}) error {
	raw, ok, err := scanJSONBytes(value)
	if err != nil {
		return err
	}
	if !ok {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, l)
}

// PackageOption 课程套餐方案
type PackageOption struct {
	Lessons        int   `json:"lessons"`          // 课时数
	PricePerLesson Money `json:"price_per_lesson"` // 套餐单节价格
	ValidityDays   int   `json:"validity_days"`    // 有效天数
}

// PackageOptions 课程套餐方案集合
type PackageOptions []PackageOption

// Value 实现 driver.Valuer 接口
func (p PackageOptions) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (p *PackageOptions) Scan(value interface{}) error {
	raw, ok, err := scanJSONBytes(value)
	if err != nil {
		return err
	}
	if !ok {
		*p = PackageOptions{}
		return nil
	}
	return json.Unmarshal(raw, p)
}

// FindByLessons 按课时数查找套餐
func (p PackageOptions) FindByLessons(lessons int) (PackageOption, bool) {
	for _, option := range p {
		if option.Lessons == lessons {
			return option, true
		}
	}
	return PackageOption{}, false
}

// CouponInfo 购物车/订单中的优惠券校验结果快照
type CouponInfo struct {
	IsValid         bool   `json:"is_valid"`
	Reason          string `json:"reason,omitempty"`
	Message         string `json:"message"`
	Code            string `json:"code,omitempty"`
	DiscountType    string `json:"discount_type,omitempty"`
	DiscountValue   *Money `json:"discount_value,omitempty"`
	MinimumPurchase *Money `json:"minimum_purchase,omitempty"`
	MaximumDiscount *Money `json:"maximum_discount,omitempty"`
}

// Value 实现 driver.Valuer 接口
func (c CouponInfo) Value() (driver.Value, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (c *CouponInfo) Scan(value interface{}) error {
	raw, ok, err := scanJSONBytes(value)
	if err != nil {
		return err
	}
	if !ok {
		*c = CouponInfo{}
		return nil
	}
	return json.Unmarshal(raw, c)
}
