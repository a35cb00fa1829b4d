package nnet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// Color transformed variants of the CIFAR-10 test set.
var Variants = []string{"greyscale", "negative", "randomkernel", "radiokernel"}

var (
	cifarShape   = []int{32, 32, 3}
	cifarClasses = 10
)

// OneHot converts class labels to one hot encoding, returning an error if a label is out of range.
func OneHot(labels []int32, classes int) (*num.Array, error) {
	for i, label := range labels {
		if label < 0 || int(label) >= classes {
			return nil, errors.Errorf("label %d at index %d out of range for %d classes", label, i, classes)
		}
	}
	return num.Onehot(labels, classes), nil
}

// Loader reads datasets stored as .npy files under Dir.
type Loader struct {
	Dir     string
	Shape   []int
	Classes int
}

// NewLoader creates a loader for CIFAR sized data in dir.
func NewLoader(dir string) Loader {
	return Loader{Dir: dir, Shape: cifarShape, Classes: cifarClasses}
}

// Images loads the named image array, reshaping flat or 2 dimensional data to [N,H,W,C].
func (l Loader) Images(name string) (*num.Array, error) {
	arr, err := num.LoadNpy(filepath.Join(l.Dir, name+".npy"))
	if err != nil {
		return nil, err
	}
	if len(arr.Dims()) == 4 {
		if !num.SameShape(arr.Dims()[1:], l.Shape) {
			return nil, errors.Errorf("%s: image shape %v, expecting %v", name, arr.Dims()[1:], l.Shape)
		}
		return arr, nil
	}
	if arr.Size()%num.Prod(l.Shape) != 0 {
		return nil, errors.Errorf("%s: %d values is not a multiple of image shape %v", name, arr.Size(), l.Shape)
	}
	return arr.Reshape(append([]int{-1}, l.Shape...)...), nil
}

// Labels loads the named label array. Class indices are converted to one hot form, a 2 dimensional
// array with one column per class is assumed to be already encoded.
func (l Loader) Labels(name string) (*num.Array, error) {
	file := filepath.Join(l.Dir, name+".npy")
	arr, err := num.LoadNpy(file)
	if err != nil {
		return nil, err
	}
	if d := arr.Dims(); len(d) == 2 && d[1] == l.Classes && l.Classes > 1 {
		return arr, nil
	}
	labels := make([]int32, arr.Size())
	for i, v := range arr.Data {
		labels[i] = int32(v)
	}
	y, err := OneHot(labels, l.Classes)
	return y, errors.Wrap(err, file)
}

// Dataset loads a pair of image and label files.
func (l Loader) Dataset(images, labels string) (*Dataset, error) {
	x, err := l.Images(images)
	if err != nil {
		return nil, err
	}
	y, err := l.Labels(labels)
	if err != nil {
		return nil, err
	}
	d, err := NewDataset(x, y)
	return d, errors.Wrapf(err, "dataset %s", images)
}

func (l Loader) load(sets map[string][2]string) (map[string]*Dataset, error) {
	data := make(map[string]*Dataset)
	for key, files := range sets {
		d, err := l.Dataset(files[0], files[1])
		if err != nil {
			return nil, err
		}
		data[key] = d
	}
	return data, nil
}

// Cifar10 loads the standard train, validation and test split.
func (l Loader) Cifar10() (map[string]*Dataset, error) {
	return l.load(map[string][2]string{
		"train": {"trainData", "trainLabel"},
		"valid": {"valData", "valLabel"},
		"test":  {"testData", "testLabel"},
	})
}

// Cifar10Case2 loads the secondary training set with the standard test set.
func (l Loader) Cifar10Case2() (map[string]*Dataset, error) {
	return l.load(map[string][2]string{
		"train": {"trainData2", "trainLabel2"},
		"test":  {"testData", "testLabel"},
	})
}

// Cifar10DANN loads data for domain adaptation: the secondary training set, plus the color
// transformed test images as both an unlabelled second training domain and the test set.
func (l Loader) Cifar10DANN(variant string) (map[string]*Dataset, error) {
	if !validVariant(variant) {
		return nil, errors.Errorf("invalid data variant %q: expecting one of %v", variant, Variants)
	}
	return l.load(map[string][2]string{
		"train":  {"trainData2", "trainLabel2"},
		"train2": {"testData_" + variant, "testLabel"},
		"test":   {"testData_" + variant, "testLabel"},
	})
}

// CifarTest loads whichever color transformed test sets are present, keyed by variant name.
func (l Loader) CifarTest() (map[string]*Dataset, error) {
	data := make(map[string]*Dataset)
	for _, variant := range Variants {
		name := "testData_" + variant
		if _, err := os.Stat(filepath.Join(l.Dir, name+".npy")); err != nil {
			continue
		}
		d, err := l.Dataset(name, "testLabel")
		if err != nil {
			return nil, err
		}
		data[variant] = d
	}
	return data, nil
}

// LoadCifar10 loads the train, valid and test sets from dir.
func LoadCifar10(dir string) (map[string]*Dataset, error) {
	return NewLoader(dir).Cifar10()
}

// LoadCifar10Case2 loads the secondary training set and test set from dir.
func LoadCifar10Case2(dir string) (map[string]*Dataset, error) {
	return NewLoader(dir).Cifar10Case2()
}

// LoadCifar10DANN loads the domain adaptation data for the given color variant from dir.
func LoadCifar10DANN(dir, variant string) (map[string]*Dataset, error) {
	return NewLoader(dir).Cifar10DANN(variant)
}

// LoadCifarTest loads the color transformed test sets from dir.
func LoadCifarTest(dir string) (map[string]*Dataset, error) {
	return NewLoader(dir).CifarTest()
}

// LoadData loads the datasets selected by conf.DataSet: cifar10, cifar10_2 or cifar10_dann_<variant>.
func LoadData(conf Config) (map[string]*Dataset, error) {
	l := Loader{Dir: conf.DataDir, Shape: conf.ImageShape, Classes: conf.Classes}
	if len(l.Shape) != 3 {
		l.Shape = cifarShape
	}
	if l.Classes <= 0 {
		l.Classes = cifarClasses
	}
	fmt.Printf("loading %s data from %s\n", conf.DataSet, conf.DataDir)
	switch {
	case conf.DataSet == "cifar10":
		return l.Cifar10()
	case conf.DataSet == "cifar10_2":
		return l.Cifar10Case2()
	case strings.HasPrefix(conf.DataSet, "cifar10_dann_"):
		return l.Cifar10DANN(strings.TrimPrefix(conf.DataSet, "cifar10_dann_"))
	default:
		return nil, errors.Errorf("unknown data set %q", conf.DataSet)
	}
}

func validVariant(name string) bool {
	for _, v := range Variants {
		if v == name {
			return true
		}
	}
	return false
}
