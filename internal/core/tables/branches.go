package tables

import (
	"github.com/JonMunkholm/banksight/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	minRating = 1
	maxRating = 5
)

// Branch is a cleaned branches row.
type Branch struct {
	BranchID          string
	BranchName        string
	City              string
	ManagerName       string
	TotalEmployees    pgtype.Int4
	BranchRevenue     pgtype.Float8
	OpeningDate       string
	PerformanceRating pgtype.Float8
}

func (b Branch) Key() string { return b.BranchID }

func (b Branch) Row() []string {
	return []string{
		b.BranchID,
		b.BranchName,
		b.City,
		b.ManagerName,
		core.FormatInt(b.TotalEmployees),
		core.FormatFloat(b.BranchRevenue, true),
		b.OpeningDate,
		core.FormatFloat(b.PerformanceRating, false),
	}
}

func branchDefinition() core.EntityDefinition {
	return core.EntityDefinition{
		Info: core.EntityInfo{
			Key:          Branches,
			Label:        "Branches",
			Sources:      []string{"branches.json", "branches.csv", "branches.xlsx"},
			GeneratedKey: true,
		},
		FieldSpecs: []core.FieldSpec{
			{Name: "branch_id", Type: core.FieldText, Key: true},
			{Name: "branch_name", Type: core.FieldText, TitleCase: true},
			{Name: "city", Type: core.FieldText, TitleCase: true},
			{Name: "manager_name", Type: core.FieldText, TitleCase: true},
			{Name: "total_employees", Type: core.FieldInteger},
			{Name: "branch_revenue", Type: core.FieldNumeric, Money: true},
			{Name: "opening_date", Type: core.FieldDate},
			{Name: "performance_rating", Type: core.FieldNumeric},
		},
		Derive: func(r *core.Row) {
			r.Clamp("performance_rating", minRating, maxRating)
		},
		Build: func(r *core.Row) core.Record {
			return Branch{
				BranchID:          r.Str("branch_id"),
				BranchName:        r.Str("branch_name"),
				City:              r.Str("city"),
				ManagerName:       r.Str("manager_name"),
				TotalEmployees:    r.Int4("total_employees"),
				BranchRevenue:     r.Num("branch_revenue"),
				OpeningDate:       r.Str("opening_date"),
				PerformanceRating: r.Num("performance_rating"),
			}
		},
	}
}
