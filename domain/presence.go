package domain

// Status is the coarse activity label of a user inside a room.
type Status string

const (
	StatusOnline   Status = "ONLINE"
	StatusStudying Status = "STUDYING"
	StatusOnBreak  Status = "BREAK"
	StatusOffline  Status = "OFFLINE"
)

// ParseStatus maps a client-provided string onto the closed enum.
// Unknown values return false; the transport boundary ignores them
// silently instead of failing the whole room.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusOnline, StatusStudying, StatusOnBreak, StatusOffline:
		return Status(s), true
	}
	return "", false
}
