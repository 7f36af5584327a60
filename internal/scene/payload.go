package scene

import (
	"strconv"

	"github.com/google/uuid"
)

// Action names, one per scene mutation the renderer understands.
const (
	ActionChangeBackground = "change_background"
	ActionSpawnText        = "spawn_text"
	ActionEditText         = "edit_text"
	ActionSpawnImage       = "spawn_image"
	ActionEditImage        = "edit_image"
	ActionDeleteElements   = "delete_elements"
)

// Domain bounds. Every numeric attribute is clamped into these ranges before
// it leaves the validator.
const (
	ChannelMin = 0
	ChannelMax = 255

	PercentMin = 0
	PercentMax = 100

	DepthMin = 0
	DepthMax = 100

	FontSizeMin = 8
	FontSizeMax = 200

	WidthMin = 50
	WidthMax = 1200
)

// ElementIDLength is the length of generated element IDs.
const ElementIDLength = 8

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// Px formats v as a pixel length, e.g. "20px".
func Px(v int) string {
	return strconv.Itoa(v) + "px"
}

// Percent formats v as a percentage, e.g. "50%".
func Percent(v int) string {
	return strconv.Itoa(v) + "%"
}

// NewElementID returns a fresh opaque element identifier. Uniqueness is
// probabilistic: the first eight characters of a random UUID.
func NewElementID() string {
	return uuid.New().String()[:ElementIDLength]
}

// =============================================================================
// PAYLOADS
// =============================================================================

// BackgroundPayload is the payload of change_background.
type BackgroundPayload struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// TextPayload is the payload of spawn_text. Every field is present.
type TextPayload struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Color    string `json:"color"`
	Font     string `json:"font"`
	FontSize string `json:"font_size"`
	X        string `json:"x"`
	Y        string `json:"y"`
	ZIndex   int    `json:"z_index"`
}

// TextPatch is the sparse payload of edit_text. Nil fields were not supplied
// and are omitted from the wire; a non-nil pointer to a zero value is kept.
type TextPatch struct {
	ID       string  `json:"id"`
	Content  *string `json:"content,omitempty"`
	Color    *string `json:"color,omitempty"`
	Font     *string `json:"font,omitempty"`
	FontSize *string `json:"font_size,omitempty"`
	X        *string `json:"x,omitempty"`
	Y        *string `json:"y,omitempty"`
	ZIndex   *int    `json:"z_index,omitempty"`
}

// ImagePayload is the payload of spawn_image. Every field is present.
type ImagePayload struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	X      string `json:"x"`
	Y      string `json:"y"`
	Width  string `json:"width"`
	ZIndex int    `json:"z_index"`
}

// ImagePatch is the sparse payload of edit_image.
type ImagePatch struct {
	ID     string  `json:"id"`
	URL    *string `json:"url,omitempty"`
	X      *string `json:"x,omitempty"`
	Y      *string `json:"y,omitempty"`
	Width  *string `json:"width,omitempty"`
	ZIndex *int    `json:"z_index,omitempty"`
}

// DeletePayload is the payload of delete_elements.
type DeletePayload struct {
	IDs []string `json:"ids"`
}
