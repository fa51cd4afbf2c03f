package opticalpath

import "errors"

// Domain errors for the optical path package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, opticalpath.ErrInvalidMode) {
//	    // unknown or unsupported mode
//	}
var (
	// ErrInvalidMode is returned when a mode is not available on this microscope.
	ErrInvalidMode = errors.New("opticalpath: invalid mode")

	// ErrNoNonMirrorGrating is returned when a non-mirror grating is required
	// but the spectrograph only offers the mirror.
	ErrNoNonMirrorGrating = errors.New("opticalpath: no non-mirror grating")

	// ErrNotAStream is returned when the input of GuessMode is not a usable stream.
	ErrNotAStream = errors.New("opticalpath: not a stream")

	// ErrNoModeInferred is returned when no mode matches the stream's detectors.
	ErrNoModeInferred = errors.New("opticalpath: no mode inferred")

	// ErrAmbiguousDetector is returned when two guessable modes share a detector.
	ErrAmbiguousDetector = errors.New("opticalpath: ambiguous detector")

	// ErrDuplicateMode is returned when a table declares the same mode twice.
	ErrDuplicateMode = errors.New("opticalpath: duplicate mode")

	// ErrInvalidTable is returned when a mode table file is malformed.
	ErrInvalidTable = errors.New("opticalpath: invalid mode table")

	// ErrTransitionNotFound is returned when a transition ID does not exist.
	ErrTransitionNotFound = errors.New("opticalpath: transition not found")
)
