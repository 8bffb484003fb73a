package experiment

import "errors"

// TrialWriter receives every finished trial.
type TrialWriter interface {
	WriteTrial(TrialRow) error
}

// Optional: writers may also want scenario summaries
type scenarioWriter interface {
	WriteScenario(ScenarioResult) error
}

// MultiWriter fans trials and scenario summaries out to several writers.
type MultiWriter struct {
	writers []TrialWriter
}

// NewMultiWriter creates a new MultiWriter. Nil writers are skipped.
func NewMultiWriter(ws ...TrialWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// WriteTrial sends a trial to all writers. A failing writer does not stop the others.
func (mw *MultiWriter) WriteTrial(row TrialRow) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteTrial(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteScenario sends a scenario summary to all writers that accept one.
func (mw *MultiWriter) WriteScenario(res ScenarioResult) error {
	var errs []error
	for _, w := range mw.writers {
		if sw, ok := w.(scenarioWriter); ok {
			if err := sw.WriteScenario(res); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
