package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	"github.com/noah-isme/civic-issue-api/internal/service"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
)

const demoPassword = "password123"

var demoStaff = []dto.CreateStaffRequest{
	{Name: "Rahul Roads", Email: "roads@city.local", Department: service.DepartmentRoads},
	{Name: "Wanda Water", Email: "water@city.local", Department: service.DepartmentWater},
	{Name: "Eli Electric", Email: "power@city.local", Department: service.DepartmentElectricity},
	{Name: "Sam Sanitation", Email: "sanitation@city.local", Department: service.DepartmentSanitation},
	{Name: "Pat Works", Email: "works@city.local", Department: service.DepartmentPublicWorks},
}

// seedDemo provisions an admin, one staff member per core department and a citizen.
// Accounts that already exist are left alone so restarts against Postgres are harmless.
func seedDemo(ctx context.Context, directory *service.DirectoryService, logr *zap.Logger) error {
	created := 0
	record := func(err error) error {
		switch {
		case err == nil:
			created++
			return nil
		case errors.Is(err, appErrors.ErrDuplicateEmail):
			return nil
		default:
			return err
		}
	}

	_, err := directory.CreateAdmin(ctx, "City Admin", "admin@city.local", demoPassword)
	if err := record(err); err != nil {
		return err
	}
	for _, staff := range demoStaff {
		staff.Password = demoPassword
		_, err := directory.CreateStaffMember(ctx, staff)
		if err := record(err); err != nil {
			return err
		}
	}
	_, err = directory.RegisterCitizen(ctx, dto.RegisterRequest{
		Name:     "Casey Citizen",
		Email:    "citizen@city.local",
		Password: demoPassword,
	})
	if err := record(err); err != nil {
		return err
	}

	logr.Info("demo accounts ready", zap.Int("created", created))
	return nil
}
