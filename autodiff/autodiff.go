// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// AutodiffBackend wraps any backend and records operations on a gradient tape:
//
//	backend := autodiff.New(cpu.New())
//	loss, grads := autodiff.ValueAndGrad(backend, func() *tensor.Tensor[float32, Backend] {
//	    return criterion.Forward(model.Forward(x), y)
//	})
//	optimizer.Step(grads)
package autodiff

import (
	"github.com/born-ml/dac/internal/autodiff"
	"github.com/born-ml/dac/tensor"
)

// AutodiffBackend records operations of the wrapped backend for Backward.
type AutodiffBackend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// BackwardCapable is a backend with a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// GradientTape records operations for reverse-mode differentiation.
type GradientTape = autodiff.GradientTape

// New wraps backend with automatic differentiation.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return autodiff.New(backend)
}

// Backward computes gradients of the scalar t with respect to every recorded
// input.
func Backward[B BackwardCapable](t *tensor.Tensor[float32, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}

// ValueAndGrad records f, differentiates its result and clears the tape.
func ValueAndGrad[B BackwardCapable](backend B, f func() *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], map[*tensor.RawTensor]*tensor.RawTensor) {
	return autodiff.ValueAndGrad(backend, f)
}

// NoGrad runs f with recording paused.
func NoGrad(backend any, f func()) {
	autodiff.NoGrad(backend, f)
}
