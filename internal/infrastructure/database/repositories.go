package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/hospital-payment/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/hospital-payment/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Payment       domainRepo.PaymentRepository
	CallbackEvent domainRepo.CallbackEventRepository
	Appointment   domainRepo.AppointmentRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Payment:       repository.NewPaymentRepository(db, logger),
		CallbackEvent: repository.NewCallbackEventRepository(db, logger),
		Appointment:   repository.NewAppointmentRepository(db),
	}
}
