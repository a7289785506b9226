package model

import "time"

type UserRole string

const (
	Participant UserRole = "participant"
	Mentor      UserRole = "mentor"
)

type User struct {
	BaseModel
	FirstName string     `gorm:"size:100;not null" json:"firstName"`
	LastName  string     `gorm:"size:100;not null" json:"lastName"`
	Email     string     `gorm:"size:100;unique;not null" json:"email"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	Role      UserRole   `gorm:"size:20;not null;default:'participant'" json:"role"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsMentor() bool {
	return u.Role == Mentor
}
