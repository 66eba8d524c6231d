// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers over parameter groups.
package optim

import (
	"github.com/born-ml/dac/internal/optim"
	"github.com/born-ml/dac/nn"
	"github.com/born-ml/dac/tensor"
)

// Optimizer updates its own parameter group from a gradient map.
type Optimizer = optim.Optimizer

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer over params.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	return optim.NewSGD(params, config, backend)
}

// Adam is the Adam optimizer with bias correction.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer over params.
//
//	gOpt := optim.NewAdam(gen.Parameters(), optim.AdamConfig{LR: 1e-4}, backend)
//	dOpt := optim.NewAdam(disc.Parameters(), optim.AdamConfig{LR: 1e-6}, backend)
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	return optim.NewAdam(params, config, backend)
}
