package types

import "time"

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleGuest   = "guest"
)

type User struct {
	Id         string    `json:"id" gorm:"primaryKey"` // e-mail, unique!
	Nick       string    `json:"nick"`
	Role       string    `json:"role" gorm:"-"` // per-room role, resolved at connect time
	LastOnline time.Time `json:"last_online"`
}
