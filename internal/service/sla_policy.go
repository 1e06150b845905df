package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Department names seeded into every directory.
const (
	DepartmentRoads       = "Roads & Infrastructure"
	DepartmentWater       = "Water Supply"
	DepartmentElectricity = "Electricity & Power"
	DepartmentSanitation  = "Sanitation & Waste"
	DepartmentPublicWorks = "Public Works"
	DepartmentGeneral     = "General"
)

// DefaultDepartments lists the seeded departments in directory order.
var DefaultDepartments = []string{
	DepartmentRoads,
	DepartmentWater,
	DepartmentElectricity,
	DepartmentSanitation,
	DepartmentPublicWorks,
	DepartmentGeneral,
}

const DefaultSLABudget = 72 * time.Hour

var defaultSLABudgets = map[string]time.Duration{
	DepartmentRoads:       48 * time.Hour,
	DepartmentWater:       24 * time.Hour,
	DepartmentElectricity: 12 * time.Hour,
	DepartmentSanitation:  36 * time.Hour,
	DepartmentPublicWorks: 48 * time.Hour,
	DepartmentGeneral:     72 * time.Hour,
}

// SLAPolicy maps a department to its resolution time budget.
type SLAPolicy struct {
	budgets  map[string]time.Duration
	fallback time.Duration
}

// NewSLAPolicy returns the built-in table with optional overrides applied on top.
func NewSLAPolicy(fallback time.Duration, overrides *PolicyOverrides) *SLAPolicy {
	if fallback <= 0 {
		fallback = DefaultSLABudget
	}
	budgets := make(map[string]time.Duration, len(defaultSLABudgets))
	for dept, budget := range defaultSLABudgets {
		budgets[dept] = budget
	}
	if overrides != nil {
		if overrides.DefaultHours > 0 {
			fallback = time.Duration(overrides.DefaultHours) * time.Hour
		}
		for dept, hours := range overrides.Departments {
			if hours > 0 {
				budgets[dept] = time.Duration(hours) * time.Hour
			}
		}
	}
	return &SLAPolicy{budgets: budgets, fallback: fallback}
}

// BudgetFor returns the time budget for department. Lookup is exact; unknown or missing departments get the fallback.
func (p *SLAPolicy) BudgetFor(department *string) time.Duration {
	if department == nil {
		return p.fallback
	}
	if budget, ok := p.budgets[*department]; ok {
		return budget
	}
	return p.fallback
}

// DeadlineFor returns createdAt plus the department budget.
func (p *SLAPolicy) DeadlineFor(createdAt time.Time, department *string) time.Time {
	return createdAt.Add(p.BudgetFor(department))
}

// PolicyOverrides is the YAML document that tunes SLA budgets and priority thresholds at startup.
//
//	default_hours: 72
//	departments:
//	  Water Supply: 12
//	priority:
//	  high: 5
//	  critical: 10
type PolicyOverrides struct {
	DefaultHours int            `yaml:"default_hours"`
	Departments  map[string]int `yaml:"departments"`
	Priority     struct {
		High     int `yaml:"high"`
		Critical int `yaml:"critical"`
	} `yaml:"priority"`
}

// LoadPolicyOverrides reads the overrides file. An empty path or a missing file yields nil overrides.
func LoadPolicyOverrides(path string) (*PolicyOverrides, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var overrides PolicyOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	return &overrides, nil
}
