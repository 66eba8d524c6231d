package attribution

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/integrate/quad"
)

// ErrUnknownMethod is returned by ParseMethod and ParseBaseline for names they
// do not recognise.
var ErrUnknownMethod = errors.New("attribution: unknown method")

// Method selects how the path integral from baseline to input is approximated.
type Method int

// Integration methods.
const (
	GaussLegendre Method = iota
	RiemannLeft
	RiemannRight
	RiemannMiddle
	RiemannTrapezoid
)

var methodNames = map[Method]string{
	GaussLegendre:    "gausslegendre",
	RiemannLeft:      "riemann_left",
	RiemannRight:     "riemann_right",
	RiemannMiddle:    "riemann_middle",
	RiemannTrapezoid: "riemann_trapezoid",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod converts a configuration string into a Method.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range methodNames {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// Points returns the interpolation coefficients alpha_k in [0, 1] and the
// matching quadrature weights for n steps. Weights sum to 1.
func (m Method) Points(n int) (alphas, weights []float64, err error) {
	if n < 1 || (m == RiemannTrapezoid && n < 2) {
		return nil, nil, fmt.Errorf("attribution: %s needs more than %d steps", m, n)
	}
	alphas = make([]float64, n)
	weights = make([]float64, n)

	switch m {
	case GaussLegendre:
		quad.Legendre{}.FixedLocations(alphas, weights, 0, 1)
		return alphas, weights, nil
	case RiemannTrapezoid:
		step := 1 / float64(n-1)
		for k := range alphas {
			alphas[k] = float64(k) * step
			weights[k] = step
		}
		weights[0] /= 2
		weights[n-1] /= 2
		return alphas, weights, nil
	}

	var offset float64
	switch m {
	case RiemannLeft:
		offset = 0
	case RiemannRight:
		offset = 1
	case RiemannMiddle:
		offset = 0.5
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
	step := 1 / float64(n)
	for k := range alphas {
		alphas[k] = (float64(k) + offset) * step
		weights[k] = step
	}
	return alphas, weights, nil
}
