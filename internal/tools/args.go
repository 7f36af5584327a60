package tools

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// Int is an integer argument as models actually send it: JSON numbers are
// rounded to the nearest integer and numeric strings are parsed.
type Int int

func (n *Int) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: %s is not a number", ErrInvalidArgType, data)
	}
	f = math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Round(f)))
	*n = Int(f)
	return nil
}

// JSONSchema reports Int as a plain integer.
func (Int) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer"}
}

// =============================================================================
// ARGUMENT STRUCTS
// =============================================================================

// BackgroundArgs are the arguments of change_background.
type BackgroundArgs struct {
	Red   *Int `json:"red,omitempty" jsonschema_description:"The red intensity (0-255)" jsonschema:"minimum=0,maximum=255,default=0"`
	Green *Int `json:"green,omitempty" jsonschema_description:"The green intensity (0-255)" jsonschema:"minimum=0,maximum=255,default=0"`
	Blue  *Int `json:"blue,omitempty" jsonschema_description:"The blue intensity (0-255)" jsonschema:"minimum=0,maximum=255,default=0"`
}

// SpawnTextArgs are the arguments of spawn_text.
type SpawnTextArgs struct {
	Content  string  `json:"content" jsonschema_description:"(REQUIRED) The text content to be spawned"`
	Color    *string `json:"color,omitempty" jsonschema_description:"Text color as a CSS color string" jsonschema:"default=white"`
	Font     *string `json:"font,omitempty" jsonschema_description:"Text font family" jsonschema:"default=sans-serif"`
	FontSize *Int    `json:"font_size,omitempty" jsonschema_description:"Font size in px (8-200)" jsonschema:"minimum=8,maximum=200,default=20"`
	X        *Int    `json:"x,omitempty" jsonschema_description:"Horizontal position (0-100 percentage of screen width)" jsonschema:"minimum=0,maximum=100,default=50"`
	Y        *Int    `json:"y,omitempty" jsonschema_description:"Vertical position (0-100 percentage of screen height)" jsonschema:"minimum=0,maximum=100,default=40"`
	Z        *Int    `json:"z,omitempty" jsonschema_description:"Integer index for relative depth (0-100)" jsonschema:"minimum=0,maximum=100,default=1"`
}

// EditTextArgs are the arguments of edit_text. Only supplied fields change.
type EditTextArgs struct {
	ElementID string  `json:"element_id" jsonschema_description:"(REQUIRED) The id of the text element to edit"`
	Content   *string `json:"content,omitempty" jsonschema_description:"New text content"`
	Color     *string `json:"color,omitempty" jsonschema_description:"New text color"`
	Font      *string `json:"font,omitempty" jsonschema_description:"New text font"`
	FontSize  *Int    `json:"font_size,omitempty" jsonschema_description:"New font size in px (clamped 8-200)" jsonschema:"minimum=8,maximum=200"`
	X         *Int    `json:"x,omitempty" jsonschema_description:"New horizontal position (0-100)%" jsonschema:"minimum=0,maximum=100"`
	Y         *Int    `json:"y,omitempty" jsonschema_description:"New vertical position (0-100)%" jsonschema:"minimum=0,maximum=100"`
	Z         *Int    `json:"z,omitempty" jsonschema_description:"New integer index for relative depth (0-100)" jsonschema:"minimum=0,maximum=100"`
}

// SpawnImageArgs are the arguments of spawn_image.
type SpawnImageArgs struct {
	URL   *string `json:"url,omitempty" jsonschema_description:"Direct url of the image. Use it when a direct link already exists"`
	Query *string `json:"query,omitempty" jsonschema_description:"A description of the image to search for when no direct link exists"`
	X     *Int    `json:"x,omitempty" jsonschema_description:"Horizontal position (0-100 percentage of screen width)" jsonschema:"minimum=0,maximum=100,default=50"`
	Y     *Int    `json:"y,omitempty" jsonschema_description:"Vertical position (0-100 percentage of screen height)" jsonschema:"minimum=0,maximum=100,default=60"`
	Width *Int    `json:"width,omitempty" jsonschema_description:"Width of the image in px (50-1200)" jsonschema:"minimum=50,maximum=1200,default=300"`
	Z     *Int    `json:"z,omitempty" jsonschema_description:"Integer index for relative depth (0-100)" jsonschema:"minimum=0,maximum=100,default=1"`
}

// EditImageArgs are the arguments of edit_image. Only supplied fields change.
type EditImageArgs struct {
	ElementID string  `json:"element_id" jsonschema_description:"(REQUIRED) The id of the image element to edit"`
	URL       *string `json:"url,omitempty" jsonschema_description:"New direct image url. Do not combine with query"`
	Query     *string `json:"query,omitempty" jsonschema_description:"Description of a new image to search for. Do not combine with url"`
	X         *Int    `json:"x,omitempty" jsonschema_description:"New horizontal position (0-100)%" jsonschema:"minimum=0,maximum=100"`
	Y         *Int    `json:"y,omitempty" jsonschema_description:"New vertical position (0-100)%" jsonschema:"minimum=0,maximum=100"`
	Width     *Int    `json:"width,omitempty" jsonschema_description:"New width in px (50-1200)" jsonschema:"minimum=50,maximum=1200"`
	Z         *Int    `json:"z,omitempty" jsonschema_description:"New integer index for relative depth (0-100)" jsonschema:"minimum=0,maximum=100"`
}

// DeleteArgs are the arguments of delete_elements.
type DeleteArgs struct {
	ElementIDs []string `json:"element_ids" jsonschema_description:"(REQUIRED) The ids of the elements to remove"`
}

// UnsupportedArgs are the (empty) arguments of unsupported_request.
type UnsupportedArgs struct{}

// decodeArgs converts model arguments into a typed struct. Any type
// mismatch is reported as ErrInvalidArgType.
func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgType, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		if errors.Is(err, ErrInvalidArgType) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrInvalidArgType, err)
	}
	return nil
}

// requireArgs checks that every name is present with a non-null value.
func requireArgs(args map[string]any, names []string) error {
	for _, name := range names {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, name)
		}
	}
	return nil
}

func intOr(p *Int, def int) int {
	if p == nil {
		return def
	}
	return int(*p)
}

func stringOr(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}
