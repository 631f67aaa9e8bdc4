package clv

import "fmt"

// Model names a probabilistic sub-model of the estimator.
type Model string

const (
	ModelBGNBD      Model = "bg/nbd"
	ModelGammaGamma Model = "gamma-gamma"
)

// ModelFitError reports that a sub-model could not be fitted.
type ModelFitError struct {
	Model  Model
	Reason string
	Err    error
}

func (e *ModelFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fit %s model: %s: %v", e.Model, e.Reason, e.Err)
	}

	return fmt.Sprintf("fit %s model: %s", e.Model, e.Reason)
}

func (e *ModelFitError) Unwrap() error {
	return e.Err
}
