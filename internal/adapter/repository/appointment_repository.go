package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wekeepgrowing/hospital-payment/internal/domain/model"
	"github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
)

type appointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository creates a read-only appointment repository
func NewAppointmentRepository(db *gorm.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("appointment_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check appointment: %w", err)
	}
	return count > 0, nil
}
