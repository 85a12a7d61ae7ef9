package specification

import "gorm.io/gorm"

type ByBatteryID struct {
	BatteryID string
}

func (s ByBatteryID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("battery_id = ?", s.BatteryID)
}

type Limit struct {
	N int
}

func (s Limit) Apply(db *gorm.DB) *gorm.DB {
	if s.N <= 0 {
		return db
	}
	return db.Limit(s.N)
}
