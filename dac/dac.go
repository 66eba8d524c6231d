// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package dac provides discriminative attribution from counterfactuals: success
// selection and hybrid images.
//
// Given real images, their counterfactuals and an attribution map:
//
//	successful, err := dac.SelectSuccessful(realPreds, labels, cfPreds)
//	for _, i := range successful {
//	    h, err := dac.MakeHybrid(images[i], cfs[i], dac.NormalizeAttribution(attrs[i]), 0.1)
//	}
//
// The run subcommand of cmd/dac drives the full workflow.
package dac

import "github.com/born-ml/dac/internal/dac"

// Errors.
var (
	ErrNoSuccessfulConversions = dac.ErrNoSuccessfulConversions
	ErrLengthMismatch          = dac.ErrLengthMismatch
)

// OppositeClass maps a binary label to the other class.
func OppositeClass(label int) int { return dac.OppositeClass(label) }

// SelectSuccessful returns the indices whose real image is classified correctly
// and whose counterfactual is classified as the opposite class.
func SelectSuccessful(realPreds, realLabels, cfPreds []int) ([]int, error) {
	return dac.SelectSuccessful(realPreds, realLabels, cfPreds)
}

// SelectSuccessfulTargets is SelectSuccessful with explicit translation targets.
func SelectSuccessfulTargets(realPreds, realLabels, cfPreds, targets []int) ([]int, error) {
	return dac.SelectSuccessfulTargets(realPreds, realLabels, cfPreds, targets)
}

// Hybrid is an image that takes counterfactual pixels where the mask is one.
type Hybrid = dac.Hybrid

// Mask returns 1 where |attr| >= threshold and 0 elsewhere.
func Mask(attr []float32, threshold float32) []float32 { return dac.Mask(attr, threshold) }

// MakeHybrid blends image and counterfactual under Mask(attr, threshold).
func MakeHybrid(image, counterfactual, attr []float32, threshold float32) (Hybrid, error) {
	return dac.MakeHybrid(image, counterfactual, attr, threshold)
}

// NormalizeAttribution scales attr so that its largest magnitude is one.
func NormalizeAttribution(attr []float32) []float32 { return dac.NormalizeAttribution(attr) }

// Thresholds returns n evenly spaced thresholds over [0, 1].
func Thresholds(n int) []float32 { return dac.Thresholds(n) }

// L1Distance returns the mean absolute difference of a and b. It panics if
// their lengths differ.
func L1Distance(a, b []float32) float64 { return dac.L1Distance(a, b) }
