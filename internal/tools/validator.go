package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"promptcanvas/internal/imagery"
	"promptcanvas/internal/logging"
	"promptcanvas/internal/scene"
)

// Spawn defaults.
const (
	DefaultTextColor    = "white"
	DefaultTextFont     = "sans-serif"
	DefaultFontSize     = 20
	DefaultTextX        = 50
	DefaultTextY        = 40
	DefaultImageX       = 50
	DefaultImageY       = 60
	DefaultImageWidth   = 300
	DefaultElementDepth = 1
)

// Validator implements every scene tool. Image tools go through the
// resolver and checker; the rest are pure.
type Validator struct {
	resolver imagery.Resolver
	checker  imagery.Validator
	logger   *zap.Logger
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithLogger sets the logger. The default is the tools category logger.
func WithLogger(l *zap.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = l
	}
}

// NewValidator creates a Validator. Nil image collaborators are replaced by
// imagery.Disabled, so image tools fail with IMAGE_NOT_FOUND.
func NewValidator(resolver imagery.Resolver, checker imagery.Validator, opts ...ValidatorOption) *Validator {
	v := &Validator{resolver: resolver, checker: checker}
	for _, opt := range opts {
		opt(v)
	}
	if v.resolver == nil {
		v.resolver = imagery.Disabled
	}
	if v.checker == nil {
		v.checker = imagery.Disabled
	}
	if v.logger == nil {
		v.logger = logging.Get(logging.CategoryTools).Zap()
	}
	return v
}

// Run decodes args for kind and executes the matching tool. The envelope is
// always set; a non-nil error explains a BAD_CALL.
func (v *Validator) Run(ctx context.Context, kind Kind, args map[string]any) (scene.Envelope, error) {
	switch kind {
	case KindChangeBackground:
		var a BackgroundArgs
		if err := decodeArgs(args, &a); err != nil {
			return badCall(err)
		}
		return v.ChangeBackground(a), nil

	case KindSpawnText:
		var a SpawnTextArgs
		if err := decodeArgs(args, &a); err != nil {
			return badCall(err)
		}
		return v.SpawnText(a), nil

	case KindEditText:
		var a EditTextArgs
		if err := decodeArgs(args, &a); err != nil {
			return badCall(err)
		}
		return v.EditText(a), nil

	case KindSpawnImage:
		var a SpawnImageArgs
		if err := decodeArgs(args, &a); err != nil {
			return badCall(err)
		}
		return v.SpawnImage(ctx, a), nil

	case KindEditImage:
		var a EditImageArgs
		if err := decodeArgs(args, &a); err != nil {
			return badCall(err)
		}
		return v.EditImage(ctx, a), nil

	case KindDeleteElements:
		var a DeleteArgs
		if err := decodeArgs(args, &a); err != nil {
			return badCall(err)
		}
		return v.DeleteElements(a), nil

	case KindUnsupportedRequest:
		return v.UnsupportedRequest(), nil
	}
	return badCall(fmt.Errorf("%w: %d", ErrUnknownKind, int(kind)))
}

func badCall(err error) (scene.Envelope, error) {
	return scene.Failure(scene.ErrBadCall), err
}

// ChangeBackground sets the background color. Omitted channels are 0.
func (v *Validator) ChangeBackground(a BackgroundArgs) scene.Envelope {
	return scene.Success(scene.ActionChangeBackground, scene.BackgroundPayload{
		R: channel(a.Red),
		G: channel(a.Green),
		B: channel(a.Blue),
	})
}

func channel(p *Int) int {
	return scene.Clamp(intOr(p, 0), scene.ChannelMin, scene.ChannelMax)
}

// SpawnText creates a text element with a fresh ID.
func (v *Validator) SpawnText(a SpawnTextArgs) scene.Envelope {
	return scene.Success(scene.ActionSpawnText, scene.TextPayload{
		ID:       scene.NewElementID(),
		Content:  a.Content,
		Color:    stringOr(a.Color, DefaultTextColor),
		Font:     stringOr(a.Font, DefaultTextFont),
		FontSize: scene.Px(fontSize(intOr(a.FontSize, DefaultFontSize))),
		X:        scene.Percent(percent(intOr(a.X, DefaultTextX))),
		Y:        scene.Percent(percent(intOr(a.Y, DefaultTextY))),
		ZIndex:   depth(intOr(a.Z, DefaultElementDepth)),
	})
}

// EditText patches a text element. Only supplied fields appear in the
// payload; the element is not checked for existence.
func (v *Validator) EditText(a EditTextArgs) scene.Envelope {
	patch := scene.TextPatch{
		ID:      a.ElementID,
		Content: a.Content,
		Color:   a.Color,
		Font:    a.Font,
	}
	if a.FontSize != nil {
		s := scene.Px(fontSize(int(*a.FontSize)))
		patch.FontSize = &s
	}
	patch.X = percentPtr(a.X)
	patch.Y = percentPtr(a.Y)
	patch.ZIndex = depthPtr(a.Z)
	return scene.Success(scene.ActionEditText, patch)
}

// SpawnImage creates an image element from a direct URL or a search query.
// The URL, whichever way it was obtained, must pass validation.
func (v *Validator) SpawnImage(ctx context.Context, a SpawnImageArgs) scene.Envelope {
	url := stringOr(a.URL, "")
	query := stringOr(a.Query, "")
	if url == "" && query == "" {
		return scene.Failure(scene.ErrBadCall)
	}
	ctx = context.WithoutCancel(ctx)

	if url == "" {
		resolved, ok := v.resolver.Resolve(ctx, query)
		if !ok {
			v.logger.Debug("spawn_image query did not resolve", zap.String("query", query))
			return scene.Failure(scene.ErrImageNotFound)
		}
		url = resolved
	}
	if !v.checker.Validate(ctx, url) {
		v.logger.Debug("spawn_image url failed validation", zap.String("url", url))
		return scene.Failure(scene.ErrImageNotFound)
	}

	return scene.Success(scene.ActionSpawnImage, scene.ImagePayload{
		ID:     scene.NewElementID(),
		URL:    url,
		X:      scene.Percent(percent(intOr(a.X, DefaultImageX))),
		Y:      scene.Percent(percent(intOr(a.Y, DefaultImageY))),
		Width:  scene.Px(width(intOr(a.Width, DefaultImageWidth))),
		ZIndex: depth(intOr(a.Z, DefaultElementDepth)),
	})
}

// EditImage patches an image element. A query without a url is resolved;
// any new url must validate. When both are given the url wins.
func (v *Validator) EditImage(ctx context.Context, a EditImageArgs) scene.Envelope {
	url := stringOr(a.URL, "")
	query := stringOr(a.Query, "")
	ctx = context.WithoutCancel(ctx)

	switch {
	case url != "" && query != "":
		v.logger.Warn("edit_image got both url and query, using url",
			zap.String("element_id", a.ElementID), zap.String("url", url), zap.String("query", query))
		fallthrough
	case url != "":
		if !v.checker.Validate(ctx, url) {
			return scene.Failure(scene.ErrImageNotFound)
		}
	case query != "":
		resolved, ok := v.resolver.Resolve(ctx, query)
		if !ok || !v.checker.Validate(ctx, resolved) {
			return scene.Failure(scene.ErrImageNotFound)
		}
		url = resolved
	}

	patch := scene.ImagePatch{ID: a.ElementID}
	if url != "" {
		patch.URL = &url
	}
	patch.X = percentPtr(a.X)
	patch.Y = percentPtr(a.Y)
	if a.Width != nil {
		s := scene.Px(width(int(*a.Width)))
		patch.Width = &s
	}
	patch.ZIndex = depthPtr(a.Z)
	return scene.Success(scene.ActionEditImage, patch)
}

// DeleteElements echoes the IDs to remove.
func (v *Validator) DeleteElements(a DeleteArgs) scene.Envelope {
	ids := a.ElementIDs
	if ids == nil {
		ids = []string{}
	}
	return scene.Success(scene.ActionDeleteElements, scene.DeletePayload{IDs: ids})
}

// UnsupportedRequest is the catch-all for requests no other tool covers.
func (v *Validator) UnsupportedRequest() scene.Envelope {
	return scene.Failure(scene.ErrUnsupportedCommand)
}

func percent(n int) int  { return scene.Clamp(n, scene.PercentMin, scene.PercentMax) }
func depth(n int) int    { return scene.Clamp(n, scene.DepthMin, scene.DepthMax) }
func fontSize(n int) int { return scene.Clamp(n, scene.FontSizeMin, scene.FontSizeMax) }
func width(n int) int    { return scene.Clamp(n, scene.WidthMin, scene.WidthMax) }

func percentPtr(p *Int) *string {
	if p == nil {
		return nil
	}
	s := scene.Percent(percent(int(*p)))
	return &s
}

func depthPtr(p *Int) *int {
	if p == nil {
		return nil
	}
	d := depth(int(*p))
	return &d
}
