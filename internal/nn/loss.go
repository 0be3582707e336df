package nn

import (
	"github.com/born-ml/dualad/internal/ad"
	"github.com/born-ml/dualad/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// Shapes must match exactly; the result is a scalar.
func MSELoss(predictions, targets ad.DTensor) ad.DTensor {
	if !predictions.Shape().Equal(targets.Shape()) {
		ad.ShapeMismatchf("MSELoss", []tensor.Shape{predictions.Shape(), targets.Shape()}, "predictions and targets must have the same shape")
	}
	return ad.Mean(ad.Square(ad.Minus(predictions, targets)))
}
