// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"errors"

	"github.com/bassosimone/errclass"
)

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ECONFIG",
// "ETIMEDOUT") that end up in the errClass field of structured logs.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// EConfig is the class of [*ConfigError] and [*InvocationError].
const EConfig = "ECONFIG"

// DefaultErrClassifier maps errors detected by this package to [EConfig]
// and delegates every other error to [errclass.New].
//
// The nil error maps to the empty string.
var DefaultErrClassifier = ErrClassifierFunc(classifyError)

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	var (
		configErr     *ConfigError
		invocationErr *InvocationError
	)
	if errors.As(err, &configErr) || errors.As(err, &invocationErr) {
		return EConfig
	}
	return errclass.New(err)
}
