package types

import (
	"time"

	"gorm.io/gorm"
)

// Room is the durable record of one tutoring session. The live board state is
// kept separately (see the board package), the record only carries the roster
// that authorization consults. A room with an empty roster is open to anyone,
// which is the state a lazily created room is in.
type Room struct {
	Id        string         `json:"id" gorm:"primaryKey"`
	TeacherId string         `json:"teacher_id"`
	StudentId string         `json:"student_id"`
	Tags      JSONStringMap  `json:"tags"`
	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (r *Room) HasRoster() bool {
	return r.TeacherId != "" || r.StudentId != ""
}

func (r *Room) IsParticipant(userId string) bool {
	if userId == "" {
		return false
	}
	return userId == r.TeacherId || userId == r.StudentId
}

// RoleOf returns the per-room role of a user id, RoleGuest if the user is not
// on the roster.
func (r *Room) RoleOf(userId string) string {
	switch {
	case userId != "" && userId == r.TeacherId:
		return RoleTeacher
	case userId != "" && userId == r.StudentId:
		return RoleStudent
	}
	return RoleGuest
}

// OtherParticipant returns the roster entry that is not userId, or "".
func (r *Room) OtherParticipant(userId string) string {
	switch userId {
	case r.TeacherId:
		return r.StudentId
	case r.StudentId:
		return r.TeacherId
	}
	return ""
}
