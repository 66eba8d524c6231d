// Package dac builds discriminative attributions from counterfactuals: it keeps
// the samples whose translation fooled the classifier, attributes the classifier
// decision against the counterfactual and blends real and counterfactual pixels
// wherever the attribution is strong.
package dac

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuccessfulConversions is returned when no sample is both correctly
	// classified and successfully translated.
	ErrNoSuccessfulConversions = errors.New("dac: no successful conversions")

	// ErrLengthMismatch is returned when parallel inputs differ in length.
	ErrLengthMismatch = errors.New("dac: length mismatch")
)

// OppositeClass maps a binary label to the other class.
func OppositeClass(label int) int { return 1 - label }

// SelectSuccessful returns the indices i where realPreds[i] == realLabels[i]
// and cfPreds[i] == 1 - realLabels[i].
func SelectSuccessful(realPreds, realLabels, cfPreds []int) ([]int, error) {
	targets := make([]int, len(realLabels))
	for i, l := range realLabels {
		targets[i] = OppositeClass(l)
	}
	return SelectSuccessfulTargets(realPreds, realLabels, cfPreds, targets)
}

// SelectSuccessfulTargets is SelectSuccessful with explicit translation targets.
func SelectSuccessfulTargets(realPreds, realLabels, cfPreds, targets []int) ([]int, error) {
	n := len(realLabels)
	if len(realPreds) != n || len(cfPreds) != n || len(targets) != n {
		return nil, fmt.Errorf("%w: %d real predictions, %d labels, %d counterfactual predictions, %d targets",
			ErrLengthMismatch, len(realPreds), n, len(cfPreds), len(targets))
	}

	var success []int
	for i := 0; i < n; i++ {
		if realPreds[i] == realLabels[i] && cfPreds[i] == targets[i] {
			success = append(success, i)
		}
	}
	if len(success) == 0 {
		return nil, fmt.Errorf("%w among %d samples", ErrNoSuccessfulConversions, n)
	}
	return success, nil
}
