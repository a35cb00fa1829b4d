package num

import (
	"io"
	"os"

	"github.com/kshedden/gonpy"
	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
)

// ReadNpy decodes a numpy array from r and converts it to float32. The returned shape is the
// one recorded in the file header. Fortran ordered arrays are not supported.
func ReadNpy(r io.Reader) (data []float32, shape []int, err error) {
	rd, err := npyio.NewReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading npy header")
	}
	descr := rd.Header.Descr
	if descr.Fortran {
		return nil, nil, errors.New("fortran ordered npy arrays not supported")
	}
	shape = append([]int{}, descr.Shape...)
	switch descr.Type {
	case "<f4":
		err = rd.Read(&data)
	case "<f8":
		var buf []float64
		if err = rd.Read(&buf); err == nil {
			data = convert(buf)
		}
	case "|u1", "<u1":
		var buf []uint8
		if err = rd.Read(&buf); err == nil {
			data = convert(buf)
		}
	case "|i1", "<i1":
		var buf []int8
		if err = rd.Read(&buf); err == nil {
			data = convert(buf)
		}
	case "<i4":
		var buf []int32
		if err = rd.Read(&buf); err == nil {
			data = convert(buf)
		}
	case "<i8":
		var buf []int64
		if err = rd.Read(&buf); err == nil {
			data = convert(buf)
		}
	default:
		return nil, nil, errors.Errorf("npy data type %q not supported", descr.Type)
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "error reading npy data")
	}
	if len(data) != Prod(shape) {
		return nil, nil, errors.Errorf("npy data has %d elements, header shape is %v", len(data), shape)
	}
	return data, shape, nil
}

// LoadNpy reads a numpy array file into a new Array with the shape from the file header.
func LoadNpy(file string) (*Array, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, shape, err := ReadNpy(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", file)
	}
	return &Array{Data: data, dims: shape}, nil
}

// SaveNpy writes the array to file as a float32 numpy array with the same shape.
func SaveNpy(file string, a *Array) error {
	w, err := gonpy.NewFileWriter(file)
	if err != nil {
		return errors.WithStack(err)
	}
	w.Shape = append([]int{}, a.Dims()...)
	return errors.Wrapf(w.WriteFloat32(a.Data), "save %s", file)
}

// SaveNpyBytes writes raw byte data such as image pixels as a uint8 numpy array.
// If shape is not given the array is one dimensional.
func SaveNpyBytes(file string, data []uint8, shape ...int) error {
	if len(shape) == 0 {
		shape = []int{len(data)}
	}
	if Prod(shape) != len(data) {
		return errors.Errorf("save %s: shape %v does not match %d values", file, shape, len(data))
	}
	w, err := gonpy.NewFileWriter(file)
	if err != nil {
		return errors.WithStack(err)
	}
	w.Shape = shape
	return errors.Wrapf(w.WriteUint8(data), "save %s", file)
}

func convert[T uint8 | int8 | int32 | int64 | float64](in []T) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
