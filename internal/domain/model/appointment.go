package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Appointment, User and Doctor are owned by other parts of the hospital
// backend. They are mapped here only so payments can preload them.

type Appointment struct {
	ID                int64           `gorm:"column:appointment_id;primaryKey" json:"appointment_id"`
	UserID            int64           `gorm:"column:user_id" json:"user_id"`
	DoctorID          int64           `gorm:"column:doctor_id" json:"doctor_id"`
	AppointmentDate   *time.Time      `gorm:"column:appointment_date;type:date" json:"appointment_date,omitempty"`
	TimeSlot          string          `gorm:"column:time_slot" json:"time_slot,omitempty"`
	TotalAmount       decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2)" json:"total_amount"`
	AppointmentStatus string          `gorm:"column:appointment_status" json:"appointment_status,omitempty"`
	CreatedAt         time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at" json:"updated_at"`

	User   *User   `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Doctor *Doctor `gorm:"foreignKey:DoctorID;references:ID" json:"doctor,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// User omits credential columns.
type User struct {
	ID           int64  `gorm:"column:user_id;primaryKey" json:"user_id"`
	FirstName    string `gorm:"column:first_name" json:"first_name"`
	LastName     string `gorm:"column:last_name" json:"last_name"`
	Email        string `gorm:"column:email" json:"email"`
	ContactPhone string `gorm:"column:contact_phone" json:"contact_phone,omitempty"`
	Address      string `gorm:"column:address" json:"address,omitempty"`
	Role         string `gorm:"column:role" json:"role"`
}

func (User) TableName() string {
	return "users"
}

type Doctor struct {
	ID             int64  `gorm:"column:doctor_id;primaryKey" json:"doctor_id"`
	UserID         *int64 `gorm:"column:user_id" json:"user_id,omitempty"`
	FirstName      string `gorm:"column:first_name" json:"first_name"`
	LastName       string `gorm:"column:last_name" json:"last_name"`
	Specialization string `gorm:"column:specialization" json:"specialization,omitempty"`
	ContactPhone   string `gorm:"column:contact_phone" json:"contact_phone,omitempty"`
}

func (Doctor) TableName() string {
	return "doctors"
}
