// Package num contains the numeric array routines used to train the networks: matrix
// multiplication via gonum BLAS, convolution, pooling, normalisation and loss kernels.
package num

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// TransType flag indicates if matrix is transposed
type TransType int

const (
	NoTrans TransType = iota
	Trans
)

func (t TransType) blas() blas.Transpose {
	if t == Trans {
		return blas.Trans
	}
	return blas.NoTrans
}

// General returns a BLAS view of a 2 dimensional array.
func General(a *Array) blas32.General {
	if len(a.dims) != 2 {
		panic(fmt.Sprintf("General: expect 2d array, got %v", a.dims))
	}
	return blas32.General{Rows: a.dims[0], Cols: a.dims[1], Stride: a.dims[1], Data: a.Data}
}

func vector(a *Array) blas32.Vector {
	return blas32.Vector{N: len(a.Data), Inc: 1, Data: a.Data}
}

// Matrix matrix multiplication: mC <- alpha*dot(mA, mB) + beta*mC
func Gemm(alpha, beta float32, mA, mB, mC *Array, aTrans, bTrans TransType) {
	adim, bdim, cdim := mA.Dims(), mB.Dims(), mC.Dims()
	if len(adim) != 2 || len(bdim) != 2 || len(cdim) != 2 {
		panic("Gemm: must have 2 dimensional arrays")
	}
	m, k := adim[0], adim[1]
	k2, n := bdim[0], bdim[1]
	if aTrans == Trans {
		m, k = k, m
	}
	if bTrans == Trans {
		k2, n = n, k2
	}
	if k2 != k {
		panic(fmt.Sprintf("Gemm: invalid input shape %v x %v", adim, bdim))
	}
	if cdim[0] != m || cdim[1] != n {
		panic(fmt.Sprintf("Gemm: invalid output shape %v expecting [%d %d]", cdim, m, n))
	}
	blas32.Gemm(aTrans.blas(), bTrans.blas(), alpha, General(mA), General(mB), beta, General(mC))
}

// Array addition and scaling: y <- alpha*x + y
func Axpy(alpha float32, x, y *Array) {
	if x.Size() != y.Size() {
		panic(fmt.Sprintf("Axpy: arrays must be same size: %v %v", x.dims, y.dims))
	}
	blas32.Axpy(alpha, vector(x), vector(y))
}

// Scale array: x <- alpha*x
func Scale(alpha float32, x *Array) {
	blas32.Scal(alpha, vector(x))
}

// Dot product of two arrays of the same size.
func Dot(x, y *Array) float32 {
	if x.Size() != y.Size() {
		panic("Dot: arrays must be same size")
	}
	return blas32.Dot(vector(x), vector(y))
}

// Sum of all elements.
func Sum(a *Array) float64 {
	var sum float64
	for _, v := range a.Data {
		sum += float64(v)
	}
	return sum
}

// Onehot converts integer labels to a [len(labels), classes] indicator matrix.
func Onehot(labels []int32, classes int) *Array {
	y := New(len(labels), classes)
	for i, label := range labels {
		if label < 0 || int(label) >= classes {
			panic(fmt.Sprintf("Onehot: label %d out of range for %d classes", label, classes))
		}
		y.Data[i*classes+int(label)] = 1
	}
	return y
}

// Unhot returns the index of the maximum value in each row of a 2d array.
func Unhot(x *Array) []int32 {
	if len(x.dims) != 2 {
		panic("Unhot: invalid array shape")
	}
	res := make([]int32, x.dims[0])
	for i := range res {
		row := x.Row(i)
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		res[i] = int32(best)
	}
	return res
}

// Relu rectified linear activation function: y = max(x, 0)
func Relu(x, y *Array) {
	for i, v := range x.Data {
		if v > 0 {
			y.Data[i] = v
		} else {
			y.Data[i] = 0
		}
	}
}

// ReluD backpropagates grad through a relu given the activation output y.
func ReluD(y, grad, dx *Array) {
	for i, v := range y.Data {
		if v > 0 {
			dx.Data[i] = grad.Data[i]
		} else {
			dx.Data[i] = 0
		}
	}
}

// SoftmaxLoss computes the softmax of the logits x row wise. It returns the mean cross entropy
// against the one hot labels y and sets grad to the gradient of that mean w.r.t. x.
func SoftmaxLoss(x, y, grad *Array) float64 {
	xdim := x.Dims()
	if len(xdim) != 2 || !SameShape(xdim, y.Dims()) || !SameShape(xdim, grad.Dims()) {
		panic("SoftmaxLoss: arrays must be 2d and same shape")
	}
	nbatch := xdim[0]
	var loss float64
	for i := 0; i < nbatch; i++ {
		in, label, out := x.Row(i), y.Row(i), grad.Row(i)
		xmax := in[0]
		for _, v := range in {
			if v > xmax {
				xmax = v
			}
		}
		var sum float64
		for j, v := range in {
			e := math.Exp(float64(v - xmax))
			out[j] = float32(e)
			sum += e
		}
		logSum := math.Log(sum)
		for j, v := range in {
			if label[j] != 0 {
				loss -= float64(label[j]) * (float64(v-xmax) - logSum)
			}
			out[j] = (float32(float64(out[j])/sum) - label[j]) / float32(nbatch)
		}
	}
	return loss / float64(nbatch)
}

// Accuracy returns the fraction of rows where the arg max of x matches that of the one hot labels.
func Accuracy(x, yOneHot *Array) float64 {
	pred, label := Unhot(x), Unhot(yOneHot)
	if len(pred) == 0 {
		return 0
	}
	correct := 0
	for i := range pred {
		if pred[i] == label[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}
