package model

import (
	"time"
)

// swagger:model User
type User struct {
	BaseModel
	Username  string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email     string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	FullName  string     `gorm:"size:100" json:"fullName"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

func (User) TableName() string {
	return "users"
}
