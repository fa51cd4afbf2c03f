// Package stream describes data-producing acquisition streams as far as the
// optical path needs them: which detector feeds a stream, and which
// sub-streams a composite stream is built from.
package stream

import "github.com/arentkievits/odemis/internal/hardware"

// Stream is any acquisition stream.
type Stream interface {
	// Name returns a human readable stream name.
	Name() string
}

// SingleDetector is a stream fed by exactly one detector.
type SingleDetector interface {
	Stream

	// Detector returns the component producing the data.
	Detector() hardware.Component
}

// Composite is a stream made of several sub-streams acquired together.
type Composite interface {
	Stream

	// Streams returns the constituent streams in acquisition order.
	Streams() []Stream
}

// DetectorStream is the basic single-detector stream.
type DetectorStream struct {
	name     string
	detector hardware.Component
}

// NewDetectorStream creates a stream fed by det.
func NewDetectorStream(name string, det hardware.Component) *DetectorStream {
	return &DetectorStream{name: name, detector: det}
}

// Name returns the stream name.
func (s *DetectorStream) Name() string { return s.name }

// Detector returns the detector feeding the stream.
func (s *DetectorStream) Detector() hardware.Component { return s.detector }

// MultiDetectorStream acquires several streams at once (e.g. SEM + CL).
type MultiDetectorStream struct {
	name    string
	streams []Stream
}

// NewMultiDetectorStream creates a composite stream from streams.
func NewMultiDetectorStream(name string, streams ...Stream) *MultiDetectorStream {
	return &MultiDetectorStream{name: name, streams: streams}
}

// Name returns the stream name.
func (s *MultiDetectorStream) Name() string { return s.name }

// Streams returns a copy of the sub-streams.
func (s *MultiDetectorStream) Streams() []Stream {
	out := make([]Stream, len(s.streams))
	copy(out, s.streams)
	return out
}

// DetectorRole returns the role of the detector feeding s, or "" if s has
// no detector.
func DetectorRole(s SingleDetector) string {
	det := s.Detector()
	if det == nil {
		return ""
	}
	return det.Role()
}
