package cache

import (
	"time"

	plandomain "github.com/AntoineVagnon/DoktuTracker-sub005/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
)

// PlanCacheTTL bounds staleness of catalog reads. Plans are immutable
// once referenced, so a short TTL only matters for activation flips.
const PlanCacheTTL = 30 * time.Second

// NewPlanCache provides the hot-path cache for plan catalog lookups.
func NewPlanCache() Cache[snowflake.ID, plandomain.Plan] {
	return NewTTLCache[snowflake.ID, plandomain.Plan]()
}
