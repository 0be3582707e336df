package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/backend/cpu"
	"github.com/born-ml/dualad/internal/diff"
	"github.com/born-ml/dualad/internal/nn"
	"github.com/born-ml/dualad/internal/optim"
	"github.com/born-ml/dualad/internal/tensor"
)

func values(t *testing.T, x ad.DTensor) []float64 {
	t.Helper()
	d, ok := cpu.AsDense(x)
	require.True(t, ok)
	return d.Data()
}

func TestXavier_Bound(t *testing.T) {
	backend := cpu.New()
	w := nn.Xavier(backend, rand.New(rand.NewSource(1)), 4, 2, tensor.Shape{2, 4})
	assert.Equal(t, tensor.Shape{2, 4}, w.Shape())

	bound := math.Sqrt(6.0 / 6.0)
	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(v), bound)
	}

	again := nn.Xavier(backend, rand.New(rand.NewSource(1)), 4, 2, tensor.Shape{2, 4})
	assert.Equal(t, w.Data(), again.Data())
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(backend, rand.New(rand.NewSource(1)), 2, 3)
	assert.Equal(t, "Linear(in_features=2, out_features=3)", layer.String())
	assert.Equal(t, tensor.Shape{3, 2}, layer.Weight().Shape())
	assert.Equal(t, []float64{0, 0, 0}, values(t, layer.Bias()))

	w := backend.MustFromSlice([]float64{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})
	b := backend.Vector(0.5, -0.5, 1)
	fixed := layer.WithParameters([]ad.DTensor{w, b})

	x := backend.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{2, 2})
	y := fixed.Forward(x)
	assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
	assert.Equal(t, []float64{1.5, 1.5, 4, 3.5, 3.5, 8}, values(t, y))

	// The original layer is untouched.
	assert.Equal(t, []float64{0, 0, 0}, values(t, layer.Bias()))
}

func TestLinear_BadInput(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear(backend, rand.New(rand.NewSource(1)), 2, 3)
	err := ad.Catch(func() { layer.Forward(backend.Vector(1, 2)) })
	assert.True(t, ad.IsShape(err))
}

func TestConv2D_Forward(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D(backend, rand.New(rand.NewSource(1)), 1, 2, 3, 3, 1, 1)
	assert.Equal(t, "Conv2D(in_channels=1, out_channels=2, kernel_size=(3, 3), stride=1, padding=1)", conv.String())
	assert.Equal(t, [2]int{4, 4}, conv.ComputeOutputSize(4, 4))

	// A centre-tap kernel copies the input; the bias shifts each channel.
	kernel := make([]float64, 18)
	kernel[4], kernel[13] = 1, 2
	fixed := conv.WithParameters([]ad.DTensor{
		backend.MustFromSlice(kernel, tensor.Shape{2, 1, 3, 3}),
		backend.Vector(10, 20),
	})
	x := backend.MustFromSlice([]float64{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	y := fixed.Forward(x)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, y.Shape())
	assert.InDeltaSlice(t, []float64{11, 12, 13, 14, 22, 24, 26, 28}, values(t, y), 1e-12)
}

func TestSequential_RebuildLayout(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	model := nn.NewSequential(
		nn.NewLinear(backend, rng, 3, 4),
		nn.NewTanh(),
		nn.NewLinear(backend, rng, 4, 1),
	)
	assert.Equal(t, 3, model.Len())

	params := model.Tensors()
	require.Len(t, params, 4)
	assert.Equal(t, tensor.Shape{4, 3}, params[0].Shape())
	assert.Equal(t, tensor.Shape{1}, params[3].Shape())

	rebuilt := model.Rebuild(params)
	for i, p := range rebuilt.Tensors() {
		assert.Same(t, params[i], p)
	}

	err := ad.Catch(func() { model.Rebuild(params[:3]) })
	assert.True(t, ad.IsShape(err))
	err = ad.Catch(func() { model.Rebuild(append(params, params[0])) })
	assert.True(t, ad.IsShape(err))

	assert.Contains(t, model.String(), "(1): Tanh")
}

func TestSequential_GradientMatchesLayout(t *testing.T) {
	backend := cpu.New()
	engine := diff.New()
	rng := rand.New(rand.NewSource(2))
	model := nn.NewSequential(
		nn.NewLinear(backend, rng, 2, 3),
		nn.NewSigmoid(),
		nn.NewLinear(backend, rng, 3, 1),
	)
	x := backend.MustFromSlice([]float64{0.1, 0.2, 0.3, 0.4}, tensor.Shape{2, 2})
	y := backend.MustFromSlice([]float64{1, -1}, tensor.Shape{2, 1})
	loss := func(m *nn.Sequential) ad.DTensor { return nn.MSELoss(m.Forward(x), y) }

	grads, err := diff.ReverseDerivativeOf(engine, loss, model)
	require.NoError(t, err)
	for i, g := range grads.Tensors() {
		assert.Equal(t, model.Tensors()[i].Shape(), g.Shape())
	}

	// The derivative along the gradient is its squared norm.
	jvp, err := diff.ForwardDerivativeOf(engine, loss, model, grads)
	require.NoError(t, err)
	norm := 0.0
	for _, g := range grads.Tensors() {
		for _, v := range values(t, g) {
			norm += v * v
		}
	}
	assert.InDelta(t, norm, values(t, jvp)[0], 1e-9)
}

func TestSequential_FitLine(t *testing.T) {
	backend := cpu.New()
	engine := diff.New()
	model := nn.NewSequential(nn.NewLinear(backend, rand.New(rand.NewSource(3)), 1, 1))
	x := backend.MustFromSlice([]float64{0, 1, 2, 3}, tensor.Shape{4, 1})
	y := backend.MustFromSlice([]float64{1, 3, 5, 7}, tensor.Shape{4, 1})
	loss := func(m *nn.Sequential) ad.DTensor { return nn.MSELoss(m.Forward(x), y) }

	sgd := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	for range 500 {
		grads, err := diff.ReverseDerivativeOf(engine, loss, model)
		require.NoError(t, err)
		model = model.Rebuild(sgd.Step(model.Tensors(), grads.Tensors()))
	}

	params := model.Tensors()
	assert.InDelta(t, 2, values(t, params[0])[0], 1e-6)
	assert.InDelta(t, 1, values(t, params[1])[0], 1e-6)
}

func TestSequential_ConvNetStepReducesLoss(t *testing.T) {
	backend := cpu.New()
	engine := diff.New()
	rng := rand.New(rand.NewSource(4))
	model := nn.NewSequential(
		nn.NewConv2D(backend, rng, 1, 2, 3, 3, 1, 1),
		nn.NewReLU(),
		nn.NewAvgPool2D(2),
		nn.NewFlatten(),
		nn.NewLinear(backend, rng, 8, 1),
	)
	data := make([]float64, 32)
	for i := range data {
		data[i] = math.Sin(float64(i))
	}
	x := backend.MustFromSlice(data, tensor.Shape{2, 1, 4, 4})
	y := backend.MustFromSlice([]float64{1, 1}, tensor.Shape{2, 1})
	loss := func(m *nn.Sequential) ad.DTensor { return nn.MSELoss(m.Forward(x), y) }

	before, grads, err := diff.ValueAndReverseDerivativeOf(engine, loss, model)
	require.NoError(t, err)
	require.Len(t, grads.Tensors(), 4)

	sgd := optim.NewSGD(optim.SGDConfig{LR: 1e-3})
	next := model.Rebuild(sgd.Step(model.Tensors(), grads.Tensors()))
	assert.Less(t, values(t, loss(next))[0], values(t, before)[0])
}

func TestMaxPool2D_Forward(t *testing.T) {
	backend := cpu.New()
	pool := nn.NewMaxPool2D(2, 2)
	assert.Equal(t, "MaxPool2D(kernel_size=2, stride=2)", pool.String())
	assert.Nil(t, pool.Parameters())

	x := backend.MustFromSlice([]float64{1, 5, 3, 2, 4, 0, 8, 7, 6, 9, 1, 1, 2, 3, 4, 0}, tensor.Shape{1, 1, 4, 4})
	y := pool.Forward(x)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, y.Shape())
	assert.Equal(t, []float64{5, 8, 9, 4}, values(t, y))
}

func TestMSELoss_ShapeMismatch(t *testing.T) {
	backend := cpu.New()
	err := ad.Catch(func() { nn.MSELoss(backend.Vector(1, 2), backend.Vector(1, 2, 3)) })
	assert.True(t, ad.IsShape(err))
	assert.InDelta(t, 2.5, values(t, nn.MSELoss(backend.Vector(1, 2), backend.Vector(2, 4)))[0], 1e-12)
}
