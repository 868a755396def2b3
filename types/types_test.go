package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementId(t *testing.T) {
	assert.Equal(t, "el-1", Element{"id": "el-1"}.Id())
	// numeric ids arrive as float64 after the JSON round trip
	assert.Equal(t, "42", Element{"id": float64(42)}.Id())
	assert.Equal(t, "", Element{"kind": "rect"}.Id())
	assert.Equal(t, "", Element{"id": true}.Id())
}

func TestRoomRoles(t *testing.T) {
	room := Room{Id: "lesson-1", TeacherId: "teacher@example.com", StudentId: "student@example.com"}

	assert.True(t, room.HasRoster())
	assert.True(t, room.IsParticipant("teacher@example.com"))
	assert.False(t, room.IsParticipant("stranger@example.com"))
	assert.False(t, room.IsParticipant(""))

	assert.Equal(t, RoleTeacher, room.RoleOf("teacher@example.com"))
	assert.Equal(t, RoleStudent, room.RoleOf("student@example.com"))
	assert.Equal(t, RoleGuest, room.RoleOf("stranger@example.com"))

	assert.Equal(t, "student@example.com", room.OtherParticipant("teacher@example.com"))
	assert.Equal(t, "teacher@example.com", room.OtherParticipant("student@example.com"))
	assert.Equal(t, "", room.OtherParticipant("stranger@example.com"))
}

func TestEmptyRosterMatchesNobody(t *testing.T) {
	room := Room{Id: "lesson-1"}
	assert.False(t, room.HasRoster())
	assert.False(t, room.IsParticipant("anyone@example.com"))
	assert.Equal(t, RoleGuest, room.RoleOf("anyone@example.com"))
}

func TestChatMessageIdIsContentDerived(t *testing.T) {
	authorId := "teacher@example.com"
	msg := ChatMessage{RoomId: "lesson-1", AuthorId: &authorId, AuthorNick: "Ms. Frizzle", Text: "hello"}
	require.NoError(t, msg.CreateId())
	require.NotEmpty(t, msg.Id)

	// same content, same id; the id field itself is excluded from the hash
	again := msg
	require.NoError(t, again.CreateId())
	assert.Equal(t, msg.Id, again.Id)

	other := msg
	other.Text = "different"
	require.NoError(t, other.CreateId())
	assert.NotEqual(t, msg.Id, other.Id)
}

func TestBoardStateCopyIsDetached(t *testing.T) {
	state := NewBoardState("lesson-1")
	state.Elements["el-1"] = Element{"id": "el-1"}
	state.Version = 1

	snap := state.Copy()
	state.Elements["el-2"] = Element{"id": "el-2"}
	state.Version = 2

	assert.Len(t, snap.Elements, 1)
	assert.Equal(t, int64(1), snap.Version)
	assert.Len(t, snap.ElementList(), 1)
}
