package services

import (
	"context"
	"strings"

	"telehealth-server/internal/models"
)

// DirectoryService lists the doctors patients can book.
type DirectoryService struct {
	deps    Deps
	booking *BookingService
}

func NewDirectoryService(deps Deps) *DirectoryService {
	deps = deps.withDefaults()
	return &DirectoryService{deps: deps, booking: NewBookingService(deps)}
}

// ListDoctors returns verified doctors, optionally filtered by specialty.
func (s *DirectoryService) ListDoctors(ctx context.Context, specialty string) ([]models.UserSanitized, error) {
	doctors, err := s.deps.Repo.ListVerifiedDoctors(ctx, strings.TrimSpace(specialty))
	if err != nil {
		return nil, err
	}
	out := make([]models.UserSanitized, 0, len(doctors))
	for i := range doctors {
		out = append(out, doctors[i].Sanitize())
	}
	return out, nil
}

// GetDoctor returns one verified doctor.
func (s *DirectoryService) GetDoctor(ctx context.Context, id string) (*models.UserSanitized, error) {
	doctor, err := s.booking.bookableDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	out := doctor.Sanitize()
	return &out, nil
}
