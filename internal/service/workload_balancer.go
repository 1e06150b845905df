package service

import "github.com/noah-isme/civic-issue-api/internal/models"

// SelectAssignee picks the staff member of department holding the fewest unresolved issues.
// Ties go to whoever appears first in staff, so the result is deterministic for a given directory order.
func SelectAssignee(department string, staff []models.User, issues []models.Issue) (*models.User, bool) {
	workload := make(map[string]int)
	for _, issue := range issues {
		if issue.AssignedTo == nil || issue.Status == models.StatusResolved {
			continue
		}
		workload[*issue.AssignedTo]++
	}

	var best *models.User
	bestLoad := 0
	for i := range staff {
		candidate := &staff[i]
		if candidate.Role != models.RoleStaff || !candidate.InDepartment(department) {
			continue
		}
		load := workload[candidate.ID]
		if best == nil || load < bestLoad {
			best = candidate
			bestLoad = load
		}
	}
	if best == nil {
		return nil, false
	}
	out := best.Clone()
	return &out, true
}
