package domain

import "time"

type SlotKind string

const (
	SlotPerson   SlotKind = "person"
	SlotClothing SlotKind = "clothing"
)

func ParseSlotKind(s string) (SlotKind, bool) {
	switch SlotKind(s) {
	case SlotPerson, SlotClothing:
		return SlotKind(s), true
	default:
		return "", false
	}
}

// Label is the heading shown above the upload area.
func (k SlotKind) Label() string {
	switch k {
	case SlotPerson:
		return "Your Photo"
	case SlotClothing:
		return "Clothing Item"
	default:
		return string(k)
	}
}

// FormField is the multipart field name the generation backend expects.
func (k SlotKind) FormField() string {
	return string(k) + "_image"
}

// File is a user-selected upload held in memory until the flow is reset.
type File struct {
	Name     string
	Size     int64
	MimeType string
	Data     []byte
}

// PreviewRef identifies a stored preview of a selected file.
type PreviewRef string

type Preview struct {
	Ref       PreviewRef
	MimeType  string
	Size      int64
	CreatedAt time.Time
}

const (
	DefaultMaxUploadSize = 10 << 20
	DefaultMaxWidth      = 4096
	DefaultMaxHeight     = 4096
	MaxFormMemory        = 32 << 20
)

var DefaultAllowedTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}
