package domain

type (
	RoomID   string
	RoomName string
)

type Room struct {
	ID   RoomID
	Name RoomName
}

// RoomSettings is the per-room configuration held by the track catalog.
type RoomSettings struct {
	AllowSharedFallback bool
	JukeboxPolicy       JukeboxPolicy
	Theme               string
}
