package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/models"
)

func clockAt(h, m int) time.Time {
	return time.Date(1970, 1, 1, h, m, 0, 0, time.UTC)
}

func TestSetAvailabilityReplacesWindow(t *testing.T) {
	f := newFixture(t)
	f.user(t, "doc", models.RoleDoctor, 0)
	ctx := context.Background()

	_, err := f.svc.Availability.GetAvailability(ctx, "doc")
	assert.ErrorIs(t, err, apperr.ErrNotConfigured)

	_, err = f.svc.Availability.SetAvailability(ctx, "doc", clockAt(9, 0), clockAt(17, 0))
	require.NoError(t, err)
	second, err := f.svc.Availability.SetAvailability(ctx, "doc", clockAt(13, 0), clockAt(15, 0))
	require.NoError(t, err)

	active, err := f.svc.Availability.GetAvailability(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
	assert.Equal(t, models.AvailabilityAvailable, active.Status)
}

func TestSetAvailabilityValidation(t *testing.T) {
	f := newFixture(t)
	f.user(t, "doc", models.RoleDoctor, 0)
	f.user(t, "pat", models.RolePatient, 0)
	ctx := context.Background()

	_, err := f.svc.Availability.SetAvailability(ctx, "pat", clockAt(9, 0), clockAt(17, 0))
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Availability.SetAvailability(ctx, "doc", clockAt(17, 0), clockAt(9, 0))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Availability.SetAvailability(ctx, "doc", clockAt(9, 0), clockAt(9, 0))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDirectory(t *testing.T) {
	f := newFixture(t)
	doctor := f.user(t, "doc", models.RoleDoctor, 7)
	f.user(t, "pat", models.RolePatient, 0)
	pending := &models.User{ExternalID: "pending", Name: "Pending", Role: models.RoleDoctor, VerificationStatus: models.VerificationPending}
	require.NoError(t, f.repo.CreateUser(context.Background(), pending))
	ctx := context.Background()

	doctors, err := f.svc.Directory.ListDoctors(ctx, "")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, doctor.ID, doctors[0].ID)

	got, err := f.svc.Directory.GetDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, "User doc", got.Name)

	_, err = f.svc.Directory.GetDoctor(ctx, pending.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
