package service

import "time"

// Recorder receives protocol outcomes for metrics. *metrics.Collector implements it.
type Recorder interface {
	VerifierRejected(reason string)
	RegistrationResult(outcome string)
	DisplayActivated()
	ObserveManifestBuild(d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) VerifierRejected(string)                   {}
func (nopRecorder) RegistrationResult(string)                 {}
func (nopRecorder) DisplayActivated()                         {}
func (nopRecorder) ObserveManifestBuild(time.Duration, error) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
