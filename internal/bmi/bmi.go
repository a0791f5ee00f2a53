// Package bmi holds the pure body-mass-index computations exposed as tools.
package bmi

import (
	"fmt"
	"math"

	mcpErrors "github.com/khirotaka/bmi-mcp/pkg/errors"
)

// Category labels, ordered by band.
const (
	Underweight  = "Underweight"
	NormalWeight = "Normal weight"
	Overweight   = "Overweight"
	Obesity      = "Obesity"
)

// Band thresholds. Each band is half-open: [lower, upper).
const (
	NormalLowerBound     = 18.5
	OverweightLowerBound = 25.0
	ObesityLowerBound    = 30.0
)

// CalculateBMI returns weight (kg) divided by height (m) squared.
func CalculateBMI(weight, height float64) (float64, error) {
	if math.IsNaN(height) || math.IsInf(height, 0) || height <= 0 {
		return 0, fmt.Errorf("%w: height must be greater than 0", mcpErrors.ErrInvalidArgument)
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
		return 0, fmt.Errorf("%w: weight must be greater than 0", mcpErrors.ErrInvalidArgument)
	}
	return weight / (height * height), nil
}

// Category maps a BMI value to its band. Values below every threshold,
// including negatives, are Underweight.
func Category(bmi float64) string {
	switch {
	case bmi >= ObesityLowerBound:
		return Obesity
	case bmi >= OverweightLowerBound:
		return Overweight
	case bmi >= NormalLowerBound:
		return NormalWeight
	default:
		return Underweight
	}
}
