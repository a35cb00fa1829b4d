package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Training configuration settings
type Config struct {
	DataSet        string
	DataDir        string
	ModelDir       string
	Output         string
	Input          string
	InputEpoch     int
	Eta            float64
	EtaDecay       float64
	EtaDecayEpochs []int
	Momentum       float64
	Lambda         float64
	KeepProb       float64
	TrainBatch     int
	TestBatch      int
	MaxEpoch       int
	SaveEvery      int
	Augment        bool
	PadSize        int
	Normalise      bool
	Shuffle        bool
	RandSeed       int64
	Device         string
	ResBlocks      int
	Classes        int
	ImageShape     []int
	DebugLevel     int
	Layers         []LayerConfig
}

// DefaultConfig returns the reference ResNet training setup for CIFAR-10 without any layers.
func DefaultConfig() Config {
	return Config{
		DataSet:        "cifar10",
		DataDir:        "../../data/cifar10",
		ModelDir:       "cachedir/models",
		Output:         "ResNet",
		Input:          "ResNet",
		InputEpoch:     199,
		Eta:            0.1,
		EtaDecay:       0.1,
		EtaDecayEpochs: []int{100, 150, 200},
		Momentum:       0.9,
		Lambda:         0.0002,
		KeepProb:       0.5,
		TrainBatch:     128,
		MaxEpoch:       200,
		SaveEvery:      5,
		Augment:        true,
		PadSize:        2,
		Shuffle:        true,
		ResBlocks:      5,
		Classes:        10,
		ImageShape:     []int{32, 32, 3},
	}
}

// Load network config from json file
func LoadConfig(file string) (c Config, err error) {
	var f *os.File
	if f, err = os.Open(file); err != nil {
		return
	}
	defer f.Close()
	fmt.Println("loading network config from", file)
	c = DefaultConfig()
	if err = json.NewDecoder(f).Decode(&c); err != nil {
		err = errors.Wrapf(err, "decode %s", file)
	}
	return
}

// Append layers to the config struct
func (c Config) AddLayers(layers ...ConfigLayer) Config {
	for _, l := range layers {
		c.Layers = append(c.Layers, l.Marshal())
	}
	return c
}

// Append layers with the given variable scope
func (c Config) AddScope(scope string, layers ...ConfigLayer) Config {
	for _, l := range layers {
		lc := l.Marshal()
		lc.Scope = scope
		c.Layers = append(c.Layers, lc)
	}
	return c
}

// Dir is the directory where models for this run are written.
func (c Config) Dir() string {
	return filepath.Join(c.ModelDir, c.Output)
}

// Save config to JSON file, writing to a temp file first and then renaming it.
func (c Config) Save(file string) error {
	tmp := filepath.Join(filepath.Dir(file), "."+filepath.Base(file))
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(c); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", file)
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, file)
}

// Fields lists the config settings, excluding the layer definitions.
func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField()-1)
	for i := range fld {
		fld[i] = st.Field(i).Name
	}
	return fld
}

func (c Config) Get(key string) interface{} {
	s := reflect.ValueOf(c)
	return s.FieldByName(key).Interface()
}

func (c Config) configString() string {
	fields := c.Fields()
	str := []string{"== Config =="}
	for _, key := range fields {
		str = append(str, fmt.Sprintf("%-14s: %v", key, c.Get(key)))
	}
	return strings.Join(str, "\n")
}

func (c Config) String() string {
	s := c.configString()
	if c.Layers != nil {
		str := []string{"\n== Network =="}
		for i, layer := range c.Layers {
			str = append(str, fmt.Sprintf("%2d: %s", i, layer))
		}
		s += strings.Join(str, "\n")
	}
	return s
}

// SetString parses val according to the type of the named field. Int slices are given as a comma
// separated list.
func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if !f.IsValid() {
		return c, errors.Errorf("invalid config field %q", key)
	}
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.String:
		f.SetString(val)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.Int {
			return c, errors.Errorf("invalid type for SetString: %v", f.Type())
		}
		var list []int
		for _, item := range strings.Split(val, ",") {
			var x int
			if x, err = strconv.Atoi(strings.TrimSpace(item)); err != nil {
				break
			}
			list = append(list, x)
		}
		if err == nil {
			f.Set(reflect.ValueOf(list))
		}
	default:
		return c, errors.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	return c, errors.Wrapf(err, "set %s", key)
}

func (c Config) SetBool(key string, val bool) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if f.IsValid() && f.Type().Kind() == reflect.Bool {
		f.SetBool(val)
		return c, nil
	}
	return c, errors.Errorf("invalid type for SetBool: %s", key)
}
