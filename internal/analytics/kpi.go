package analytics

import (
	"github.com/shopspring/decimal"
)

type KPIInput struct {
	RegistrationsThisMonth int
	RegistrationsLastMonth int
	TotalUsers             int
	ActiveUsers            int
	TotalStudents          int
	TotalEnrollments       int
	CompletionRate         decimal.Decimal
}

type KPIs struct {
	UserGrowthRate           decimal.Decimal `json:"user_growth_rate"`
	CompletionRate           decimal.Decimal `json:"completion_rate"`
	UserEngagementRate       decimal.Decimal `json:"user_engagement_rate"`
	AvgEnrollmentsPerStudent decimal.Decimal `json:"avg_enrollments_per_student"`
}

// ComputeKPIs derives the dashboard KPIs. Every value is rounded to two decimals and is zero
// when its denominator is zero.
func ComputeKPIs(in KPIInput) KPIs {
	return KPIs{
		UserGrowthRate:           percent(in.RegistrationsThisMonth-in.RegistrationsLastMonth, in.RegistrationsLastMonth),
		CompletionRate:           in.CompletionRate.Round(2),
		UserEngagementRate:       percent(in.ActiveUsers, in.TotalUsers),
		AvgEnrollmentsPerStudent: ratio(in.TotalEnrollments, in.TotalStudents).Round(2),
	}
}

func percent(n, d int) decimal.Decimal {
	return ratio(n, d).Mul(decimal.NewFromInt(100)).Round(2)
}

func ratio(n, d int) decimal.Decimal {
	if d == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(d)))
}
