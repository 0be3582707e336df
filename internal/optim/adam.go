package optim

import (
	"math"

	"github.com/born-ml/dualad/internal/ad"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	t     int           // Timestep for bias correction
	m     ad.TensorList // First moment estimates
	v     ad.TensorList // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer with default hyperparameters where
// config leaves them zero.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		lr:    config.LR,
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step(params, grads ad.TensorList) ad.TensorList {
	checkStep("Adam", params, grads)
	a.t++
	biasCorrection1 := 1 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1 - math.Pow(a.beta2, float64(a.t))

	out := make(ad.TensorList, len(params))
	for i, param := range params {
		grad := grads[i]
		if grad == nil {
			out[i] = param
			continue
		}
		var m, v ad.DTensor
		a.m, m = state(a.m, params, i)
		a.v, v = state(a.v, params, i)

		m = ad.Plus(ad.TimesScalar(m, a.beta1), ad.TimesScalar(grad, 1-a.beta1))
		v = ad.Plus(ad.TimesScalar(v, a.beta2), ad.TimesScalar(ad.Square(grad), 1-a.beta2))
		a.m[i], a.v[i] = m, v

		mHat := ad.DivScalar(m, biasCorrection1)
		vHat := ad.DivScalar(v, biasCorrection2)
		step := ad.Div(mHat, ad.PlusScalar(ad.Sqrt(vHat), a.eps))
		out[i] = ad.Minus(param, ad.TimesScalar(step, a.lr))
	}
	return out
}

// Reset clears the moments and the timestep.
func (a *Adam) Reset() {
	a.t = 0
	a.m, a.v = nil, nil
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}
