// Package domain contains core concepts of the study room system.
// No runtime, network, or UI logic should be added here.
package domain

// RoomID identifies a study room. Real room state (title, capacity, owner)
// lives outside the coordination core; the core only uses the id as a
// grouping key for membership counts.
type RoomID int64
