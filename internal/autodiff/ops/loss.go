package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/dac/internal/tensor"
)

// CrossEntropyOp is the batch mean of -log softmax(logits)[target] for
// [N, K] logits and [N] int32 targets. Targets receive no gradient.
type CrossEntropyOp struct {
	node
	targets *tensor.RawTensor
}

// NewCrossEntropyOp records output = crossentropy(logits, targets).
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{node: edges(output, logits), targets: targets}
}

// Backward returns g * (softmax(logits) - onehot(targets)) / N.
func (op *CrossEntropyOp) Backward(g *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logits := op.inputs[0]
	n, k := checkLogits("crossentropy", logits, op.targets)
	scale := scalar("crossentropy", g) / float32(n)

	grad := tensor.MustRaw(logits.Shape(), tensor.Float32, logits.Device())
	src, dst, tgt := logits.AsFloat32(), grad.AsFloat32(), op.targets.AsInt32()
	for b := 0; b < n; b++ {
		p := Softmax(src[b*k : (b+1)*k])
		p[tgt[b]]--
		for i, v := range p {
			dst[b*k+i] = scale * v
		}
	}
	return []*tensor.RawTensor{grad}
}

// CrossEntropyForward computes the mean cross-entropy as a [1] tensor.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	n, k := checkLogits("crossentropy", logits, targets)
	src, tgt := logits.AsFloat32(), targets.AsInt32()

	var total float64
	for b := 0; b < n; b++ {
		row := src[b*k : (b+1)*k]
		m := maxOf(row)
		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - m))
		}
		total += float64(m) + math.Log(sum) - float64(row[tgt[b]])
	}
	return full(tensor.Shape{1}, float32(total/float64(n)), device)
}

func checkLogits(op string, logits, targets *tensor.RawTensor) (n, k int) {
	ls, ts := logits.Shape(), targets.Shape()
	if len(ls) != 2 || len(ts) != 1 || ts[0] != ls[0] {
		panic(fmt.Sprintf("%s: want logits [N, K] and targets [N], got %v and %v", op, ls, ts))
	}
	n, k = ls[0], ls[1]
	for i, t := range targets.AsInt32() {
		if t < 0 || int(t) >= k {
			panic(fmt.Sprintf("%s: target %d of row %d out of range [0, %d)", op, t, i, k))
		}
	}
	return n, k
}

// Softmax returns the softmax of one row of logits.
func Softmax(row []float32) []float32 {
	out := make([]float32, len(row))
	m := maxOf(row)
	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - m))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func maxOf(row []float32) float32 {
	m := float32(math.Inf(-1))
	for _, v := range row {
		m = max(m, v)
	}
	return m
}

// L1Op is mean(|a - b|) over tensors of equal shape. sign(0) is taken as 0.
type L1Op struct{ node }

// NewL1Op records output = l1(a, b).
func NewL1Op(a, b, output *tensor.RawTensor) *L1Op {
	return &L1Op{edges(output, a, b)}
}

// L1Forward computes mean(|a - b|) as a [1] tensor.
func L1Forward(a, b *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("l1: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	var total float64
	bd := b.AsFloat32()
	for i, v := range a.AsFloat32() {
		total += math.Abs(float64(v - bd[i]))
	}
	return full(tensor.Shape{1}, float32(total/float64(a.NumElements())), device)
}

// Backward returns (g*sign(a-b)/n, -g*sign(a-b)/n).
func (op *L1Op) Backward(g *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	step := scalar("l1", g) / float32(a.NumElements())

	gradA := full(a.Shape(), 0, backend.Device())
	gradB := full(b.Shape(), 0, backend.Device())
	ga, gb, bd := gradA.AsFloat32(), gradB.AsFloat32(), b.AsFloat32()
	for i, v := range a.AsFloat32() {
		if d := v - bd[i]; d > 0 {
			ga[i], gb[i] = step, -step
		} else if d < 0 {
			ga[i], gb[i] = -step, step
		}
	}
	return []*tensor.RawTensor{gradA, gradB}
}
