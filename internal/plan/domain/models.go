package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// IntervalUnit is the unit of a plan's billing interval.
type IntervalUnit string

const (
	IntervalUnitDay   IntervalUnit = "day"
	IntervalUnitWeek  IntervalUnit = "week"
	IntervalUnitMonth IntervalUnit = "month"
	IntervalUnitYear  IntervalUnit = "year"
)

// Plan defines a membership offering. Plans are immutable once a live
// subscription references them; corrections repoint the subscription to
// another plan rather than mutating allowance in place.
type Plan struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Name              string       `gorm:"type:text;not null" json:"name"`
	IntervalUnit      IntervalUnit `gorm:"type:text;not null;uniqueIndex:ux_plans_interval,priority:1" json:"interval_unit"`
	IntervalCount     int          `gorm:"not null;uniqueIndex:ux_plans_interval,priority:2" json:"interval_count"`
	PriceAmount       int64        `gorm:"not null" json:"price_amount"`
	Currency          string       `gorm:"type:text;not null" json:"currency"`
	AllowancePerCycle int          `gorm:"not null" json:"allowance_per_cycle"`
	IsActive          bool         `gorm:"not null;default:true;uniqueIndex:ux_plans_interval,priority:3" json:"is_active"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PeriodEnd returns the end of a billing period starting at start.
func (p Plan) PeriodEnd(start time.Time) time.Time {
	switch p.IntervalUnit {
	case IntervalUnitDay:
		return start.AddDate(0, 0, p.IntervalCount)
	case IntervalUnitWeek:
		return start.AddDate(0, 0, 7*p.IntervalCount)
	case IntervalUnitYear:
		return start.AddDate(p.IntervalCount, 0, 0)
	default:
		return start.AddDate(0, p.IntervalCount, 0)
	}
}
