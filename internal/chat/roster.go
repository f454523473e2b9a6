package chat

import (
	"sort"
	"strings"
	"time"
)

const groupLabel = "Group Chat"

// ProjectContacts derives the ordered contact list from the raw room
// list. Two-party rooms yield the counterpart identity (the room-id
// segment not equal to currentUserID); group rooms yield a group
// contact with no counterpart. The result is sorted by last activity,
// newest first, rooms with no activity last, stably.
func ProjectContacts(rooms []Room, currentUserID string) []Contact {
	contacts := make([]Contact, 0, len(rooms))

	for _, room := range rooms {
		if room.IsGroup {
			name := room.DisplayName
			if name == "" {
				name = groupLabel
			}
			contacts = append(contacts, Contact{
				RoomID:       room.RoomID,
				Name:         name,
				IsGroup:      true,
				Unread:       room.Unread,
				LastActivity: lastActivity(room),
				LastMessage:  room.LastMessage,
				LastKind:     previewKind(room),
			})
			continue
		}

		segments := strings.Split(room.RoomID, "_")
		if len(segments) != 2 {
			continue
		}
		counterpart := ""
		for _, seg := range segments {
			if seg != currentUserID {
				counterpart = seg
				break
			}
		}
		if counterpart == "" {
			continue
		}

		contacts = append(contacts, Contact{
			CounterpartID: counterpart,
			RoomID:        room.RoomID,
			Name:          room.DisplayName,
			Email:         room.Email,
			Unread:        room.Unread,
			LastActivity:  lastActivity(room),
			LastMessage:   room.LastMessage,
			LastKind:      previewKind(room),
		})
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i].LastActivity, contacts[j].LastActivity
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	return contacts
}

// lastActivity is the last message time, falling back to room creation.
func lastActivity(room Room) *time.Time {
	if room.LastMessageAt != nil {
		return room.LastMessageAt
	}
	if room.CreatedAt.IsZero() {
		return nil
	}
	created := room.CreatedAt
	return &created
}

func previewKind(room Room) Kind {
	if room.LastMessageKind == "" {
		return KindText
	}
	return room.LastMessageKind
}
