package nnet

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

// SanitizeName converts a hierarchical parameter name to a file name by replacing each / with _.
func SanitizeName(name string) string {
	return strings.ReplaceAll(name, "/", "_")
}

// EpochDir is the checkpoint directory for the given 0 based epoch under the model dir.
func EpochDir(modelDir string, epoch int) string {
	return filepath.Join(modelDir, strconv.Itoa(epoch))
}

// InputDir is the directory initial weights are loaded from: <ModelDir>/<Input>/<InputEpoch>,
// or <ModelDir>/<Input> if InputEpoch is zero.
func (c Config) InputDir() string {
	if c.InputEpoch == 0 {
		return filepath.Join(c.ModelDir, c.Input)
	}
	return EpochDir(filepath.Join(c.ModelDir, c.Input), c.InputEpoch)
}

// SaveWeights creates dir if needed and writes one .npy file for each parameter.
// Existing files are overwritten.
func SaveWeights(dir string, params []*Param) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, p := range params {
		file := filepath.Join(dir, SanitizeName(p.Name)+".npy")
		if err := num.SaveNpy(file, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// LoadWeights reads the saved value of each parameter whose name has the given scope prefix
// and copies it into the parameter. Other parameters are left unchanged.
func LoadWeights(dir, scope string, params []*Param) error {
	for _, p := range params {
		if !strings.HasPrefix(p.Name, scope) {
			continue
		}
		arr, err := num.LoadNpy(filepath.Join(dir, SanitizeName(p.Name)+".npy"))
		if err != nil {
			return err
		}
		if arr.Size() != p.Value.Size() {
			return errors.Errorf("%s: saved size %d does not match %v", p.Name, arr.Size(), p.Value.Dims())
		}
		copy(p.Value.Data, arr.Data)
	}
	return nil
}
