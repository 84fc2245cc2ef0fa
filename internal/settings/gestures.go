package settings

import (
	"context"
	"fmt"

	"github.com/kalambet/hearth/internal/apps"
	"github.com/kalambet/hearth/internal/codec"
	"github.com/kalambet/hearth/internal/storage"
)

// Gesture is one of the app-bound gesture slots.
type Gesture int

const (
	SwipeUp Gesture = iota
	SwipeDown
	SwipeLeft
	SwipeRight
	TwoFingerSwipeUp
	TwoFingerSwipeDown
	TwoFingerSwipeLeft
	TwoFingerSwipeRight
	DoubleTap
	LongPress
	PinchIn
	PinchOut

	gestureCount
)

var gestureNames = [gestureCount]struct{ name, title string }{
	SwipeUp:             {"swipeUp", "Swipe up"},
	SwipeDown:           {"swipeDown", "Swipe down"},
	SwipeLeft:           {"swipeLeft", "Swipe left"},
	SwipeRight:          {"swipeRight", "Swipe right"},
	TwoFingerSwipeUp:    {"twoFingerSwipeUp", "Two-finger swipe up"},
	TwoFingerSwipeDown:  {"twoFingerSwipeDown", "Two-finger swipe down"},
	TwoFingerSwipeLeft:  {"twoFingerSwipeLeft", "Two-finger swipe left"},
	TwoFingerSwipeRight: {"twoFingerSwipeRight", "Two-finger swipe right"},
	DoubleTap:           {"doubleTap", "Double tap"},
	LongPress:           {"longPress", "Long press"},
	PinchIn:             {"pinchIn", "Pinch in"},
	PinchOut:            {"pinchOut", "Pinch out"},
}

// Gestures returns all gesture slots.
func Gestures() []Gesture {
	out := make([]Gesture, 0, gestureCount)
	for g := Gesture(0); g < gestureCount; g++ {
		out = append(out, g)
	}
	return out
}

// ParseGesture accepts either the slot name ("swipeUp") or its key ("swipeUpApp").
func ParseGesture(s string) (Gesture, bool) {
	for g := Gesture(0); g < gestureCount; g++ {
		if gestureNames[g].name == s || g.Key() == s {
			return g, true
		}
	}
	return 0, false
}

func (g Gesture) valid() bool { return g >= 0 && g < gestureCount }

func (g Gesture) String() string {
	if !g.valid() {
		return fmt.Sprintf("Gesture(%d)", int(g))
	}
	return gestureNames[g].name
}

// Title is the label shown next to the slot's app picker.
func (g Gesture) Title() string {
	if !g.valid() {
		return g.String()
	}
	return gestureNames[g].title
}

// Key is the store key and setting name of the slot.
func (g Gesture) Key() string {
	return g.String() + "App"
}

var referenceCodec = codec.JSON[apps.Reference]("app reference")

// GestureApp returns the app bound to g in the current snapshot.
func (s *Service) GestureApp(g Gesture) (apps.Reference, bool) {
	if !g.valid() {
		return apps.Reference{}, false
	}
	ref := s.Current().Gestures[g]
	return ref, !ref.IsZero()
}

// SetGestureApp binds ref to g. It writes only the slot's own key; a zero ref
// unbinds the slot.
func (s *Service) SetGestureApp(ctx context.Context, g Gesture, ref apps.Reference) error {
	if !g.valid() {
		return fmt.Errorf("%w: unknown gesture %d", ErrInvalidValue, int(g))
	}
	if !ref.IsZero() && ref.PackageName == "" {
		return fmt.Errorf("%w: %s needs a package name", ErrInvalidValue, g.Key())
	}

	err := s.store.Edit(ctx, func(tx *storage.Tx) error {
		if ref.IsZero() {
			return tx.Delete(g.Key())
		}
		raw, err := referenceCodec.Encode(ref)
		if err != nil {
			return err
		}
		return tx.Set(g.Key(), raw)
	})
	if err != nil {
		return fmt.Errorf("saving %s: %w", g.Key(), err)
	}
	s.refresh()
	return nil
}

// ClearGestureApp unbinds g.
func (s *Service) ClearGestureApp(ctx context.Context, g Gesture) error {
	return s.SetGestureApp(ctx, g, apps.Reference{})
}
