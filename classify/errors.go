package classify

import (
	"context"
	"errors"
	"fmt"

	"parbi/ml"
)

var (
	ErrArtifactNotFound  = ml.ErrArtifactNotFound
	ErrFeatureMismatch   = ml.ErrFeatureMismatch
	ErrMalformedArtifact = ml.ErrMalformedArtifact
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrUnknownClass      = errors.New("unknown class id")
)

// Error kinds reported to clients and metrics.
const (
	KindArtifactNotFound  = "artifact_not_found"
	KindFeatureMismatch   = "feature_mismatch"
	KindMalformedArtifact = "malformed_artifact"
	KindInvalidSelection  = "invalid_selection"
	KindUnknownClass      = "unknown_class"
	KindCanceled          = "canceled"
	KindInternal          = "internal"
)

// Error describes a failed prediction step.
type Error struct {
	Op    string
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("classify %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("classify %s %q: %v", e.Op, e.Model, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err into one of the Kind constants.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrArtifactNotFound):
		return KindArtifactNotFound
	case errors.Is(err, ErrFeatureMismatch):
		return KindFeatureMismatch
	case errors.Is(err, ErrMalformedArtifact):
		return KindMalformedArtifact
	case errors.Is(err, ErrInvalidSelection):
		return KindInvalidSelection
	case errors.Is(err, ErrUnknownClass):
		return KindUnknownClass
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// UserMessage renders err as a sentence suitable for the prediction page.
func UserMessage(err error) string {
	var model string
	var e *Error
	if errors.As(err, &e) {
		model = e.Model
	}
	switch KindOf(err) {
	case KindArtifactNotFound:
		return fmt.Sprintf("The %s model is not available: its artifact file is missing.", model)
	case KindFeatureMismatch:
		return fmt.Sprintf("The %s model does not match the loaded vectorizer. Retrain the models together with the vectorizer.", model)
	case KindMalformedArtifact:
		return fmt.Sprintf("The %s model artifact could not be read.", model)
	case KindInvalidSelection:
		return "Please choose one of the listed models."
	case KindUnknownClass:
		return fmt.Sprintf("The %s model returned a category this app does not know.", model)
	case KindCanceled:
		return "The request was canceled before the prediction finished."
	default:
		return "Prediction failed. Please try again later."
	}
}
