package seed

import (
	"context"
	"errors"
	"time"

	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// EnsurePlans seeds the two membership plans offered at launch. Reruns
// leave existing rows untouched.
func EnsurePlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultPlans(node) {
			if err := ensurePlanTx(ctx, tx, plan); err != nil {
				return err
			}
		}
		return nil
	})
}

func defaultPlans(node *snowflake.Node) []plandomain.Plan {
	now := time.Now().UTC()
	return []plandomain.Plan{
		{
			ID:                node.Generate(),
			Name:              "Monthly Membership",
			IntervalUnit:      plandomain.IntervalUnitMonth,
			IntervalCount:     1,
			PriceAmount:       4500,
			Currency:          "EUR",
			AllowancePerCycle: 2,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		{
			ID:                node.Generate(),
			Name:              "6-Month Membership",
			IntervalUnit:      plandomain.IntervalUnitMonth,
			IntervalCount:     6,
			PriceAmount:       21900,
			Currency:          "EUR",
			AllowancePerCycle: 12,
			IsActive:          true,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
	}
}

func ensurePlanTx(ctx context.Context, tx *gorm.DB, plan plandomain.Plan) error {
	var count int64
	err := tx.WithContext(ctx).
		Model(&plandomain.Plan{}).
		Where("interval_unit = ? AND interval_count = ? AND is_active = ?",
			plan.IntervalUnit, plan.IntervalCount, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&plan).Error
}
