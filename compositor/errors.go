package compositor

import (
	"errors"
	"fmt"
)

// ValidationErrorKind classifies validation failures.
type ValidationErrorKind int

const (
	// ValidationEmptyTargets indicates no targets were given.
	ValidationEmptyTargets ValidationErrorKind = iota
	// ValidationNoChannels indicates a target with every channel unassigned.
	ValidationNoChannels
	// ValidationMissingLayer indicates a referenced layer id not in the document.
	ValidationMissingLayer
	// ValidationNotGroup indicates a referenced layer that is not a group.
	ValidationNotGroup
	// ValidationEmptyGroup indicates a referenced group with no children.
	ValidationEmptyGroup
	// ValidationHiddenGroup indicates a referenced group that is not visible.
	ValidationHiddenGroup
	// ValidationBadScale indicates an unsupported scale factor.
	ValidationBadScale
	// ValidationBadFormat indicates an unsupported output format.
	ValidationBadFormat
	// ValidationNoDocument indicates a missing or zero-sized document.
	ValidationNoDocument
)

func (k ValidationErrorKind) String() string {
	switch k {
	case ValidationEmptyTargets:
		return "empty_targets"
	case ValidationNoChannels:
		return "no_channels"
	case ValidationMissingLayer:
		return "missing_layer"
	case ValidationNotGroup:
		return "not_group"
	case ValidationEmptyGroup:
		return "empty_group"
	case ValidationHiddenGroup:
		return "hidden_group"
	case ValidationBadScale:
		return "bad_scale"
	case ValidationBadFormat:
		return "bad_format"
	case ValidationNoDocument:
		return "no_document"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ValidationError fails a whole export batch before any pixels are fetched.
type ValidationError struct {
	Kind ValidationErrorKind
	// Target is the index of the offending target, or -1.
	Target int
	// LayerID is the offending layer, or -1.
	LayerID int
	Msg     string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid export (%s): %s", e.Kind, e.Msg)
	if e.Target >= 0 {
		msg += fmt.Sprintf(" [target %d]", e.Target)
	}
	if e.LayerID >= 0 {
		msg += fmt.Sprintf(" [layer %d]", e.LayerID)
	}
	return msg
}

// IsValidationError returns true if err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
