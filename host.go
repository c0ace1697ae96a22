package depict

import (
	"context"
	"fmt"
	"strings"
)

// Host loads model files into documents. Implementations wrap a CAD application
// or a standalone renderer.
type Host interface {
	Open(ctx context.Context, path string) (Document, error)
}

// Document is a loaded model. A Document is owned by a single caller until closed.
type Document interface {
	Name() string
	// RootObjects returns the top level objects of the model. Only the first
	// one is rotated by [Apply].
	RootObjects() []Object
	View() View
	// Close releases the document. No other method may be called afterwards.
	Close(ctx context.Context) error
}

// DeferredSaver is implemented by documents whose SaveImage only queues the
// image. Queued images are written by Close, so none exist if Close fails.
type DeferredSaver interface {
	SavesOnClose() bool
}

// Object is a root object of a document with a mutable placement.
type Object interface {
	Placement() Placement
	SetPlacement(Placement) error
}

// View is the camera of a document.
type View interface {
	// FitAll centers the camera on the model so all of it is visible. It resets
	// any previous zoom.
	FitAll() error
	// ScaleHeight multiplies the camera height by factor. Factors above 1 zoom out.
	ScaleHeight(factor float64) error
	SaveImage(path string, width, height int, bg Background) error
}

// Background selects what is painted behind the model when saving an image.
type Background uint8

const (
	BackgroundWhite Background = iota
	BackgroundBlack
	BackgroundTransparent
	// BackgroundCurrent uses whatever background the view currently displays.
	BackgroundCurrent
)

var backgroundNames = [...]string{
	BackgroundWhite:       "White",
	BackgroundBlack:       "Black",
	BackgroundTransparent: "Transparent",
	BackgroundCurrent:     "Current",
}

// ParseBackground parses a background name case insensitively.
func ParseBackground(s string) (Background, error) {
	for i, name := range backgroundNames {
		if strings.EqualFold(s, name) {
			return Background(i), nil
		}
	}
	return 0, fmt.Errorf("invalid background %q, want one of %s", s, strings.Join(backgroundNames[:], ", "))
}

func (bg Background) String() string {
	if int(bg) < len(backgroundNames) {
		return backgroundNames[bg]
	}
	return fmt.Sprintf("Background(%d)", bg)
}

func (bg Background) MarshalText() ([]byte, error) {
	if int(bg) >= len(backgroundNames) {
		return nil, fmt.Errorf("invalid background %d", bg)
	}
	return []byte(bg.String()), nil
}

func (bg *Background) UnmarshalText(text []byte) error {
	parsed, err := ParseBackground(string(text))
	if err != nil {
		return err
	}
	*bg = parsed
	return nil
}

// Set implements the flag value interface so a Background can be used as a command line flag.
func (bg *Background) Set(s string) error { return bg.UnmarshalText([]byte(s)) }

// Type implements the pflag value interface.
func (bg *Background) Type() string { return "background" }
