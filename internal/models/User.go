package models

import "gorm.io/gorm"

type User struct {
	gorm.Model
	Username string `json:"username" gorm:"uniqueIndex;not null"`
	Email    string `json:"email" gorm:"uniqueIndex;not null"`
	Password string `json:"-" gorm:"not null"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role" gorm:"type:varchar(20);not null"` // student, driver, parent, admin
}

// HasPhone reports whether SMS notifications can be addressed to the user.
func (u *User) HasPhone() bool {
	return u != nil && u.Phone != ""
}
