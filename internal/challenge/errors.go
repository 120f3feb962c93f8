package challenge

import "errors"

var (
	errInvalidLength = errors.New("challenge: invalid submission length")
	errInvalidFormat = errors.New("challenge: invalid submission format")
)
