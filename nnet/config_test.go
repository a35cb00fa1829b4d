package nnet

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestSetConfig(t *testing.T) {
	c := DefaultConfig()
	var err error
	if c, err = c.SetString("Eta", "0.05"); err != nil || c.Eta != 0.05 {
		t.Error("set Eta", c.Eta, err)
	}
	if c, err = c.SetString("TrainBatch", "64"); err != nil || c.TrainBatch != 64 {
		t.Error("set TrainBatch", c.TrainBatch, err)
	}
	if c, err = c.SetString("EtaDecayEpochs", "10, 20"); err != nil || !reflect.DeepEqual(c.EtaDecayEpochs, []int{10, 20}) {
		t.Error("set EtaDecayEpochs", c.EtaDecayEpochs, err)
	}
	if c, err = c.SetBool("Augment", false); err != nil || c.Augment {
		t.Error("set Augment", c.Augment, err)
	}
	if _, err = c.SetString("TrainBatch", "x"); err == nil {
		t.Error("expected parse error")
	}
	if _, err = c.SetString("NoSuchField", "1"); err == nil {
		t.Error("expected invalid field error")
	}
	if _, err = c.SetBool("Eta", true); err == nil {
		t.Error("expected type error")
	}
}

func TestSaveConfig(t *testing.T) {
	c := ResNet(DefaultConfig(), 2, 10)
	file := filepath.Join(t.TempDir(), "config.json")
	if err := c.Save(file); err != nil {
		t.Fatal(err)
	}
	c2, err := LoadConfig(file)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range c.Fields() {
		if !reflect.DeepEqual(c.Get(key), c2.Get(key)) {
			t.Errorf("%s: got %v expect %v", key, c2.Get(key), c.Get(key))
		}
	}
	if len(c2.Layers) != len(c.Layers) {
		t.Fatal("got", len(c2.Layers), "layers, expect", len(c.Layers))
	}
	for i, l := range c.Layers {
		if l.String() != c2.Layers[i].String() {
			t.Errorf("layer %d: got %s expect %s", i, c2.Layers[i], l)
		}
	}
	s := c2.String()
	t.Log(s)
	if !strings.Contains(s, "conv2_1") || !strings.Contains(s, "linear") {
		t.Error("network layers missing from config description")
	}
}
