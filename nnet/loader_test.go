package nnet

import (
	"path/filepath"
	"testing"

	"github.com/jnb666/deepres/num"
)

var testShape = []int{2, 2, 3}

func writeTestData(t *testing.T, dir, images, labels string, n int, value float32) {
	t.Helper()
	x := num.New(n * num.Prod(testShape)).Fill(value)
	if err := num.SaveNpy(filepath.Join(dir, images+".npy"), x); err != nil {
		t.Fatal(err)
	}
	y := make([]uint8, n)
	for i := range y {
		y[i] = uint8(i % 4)
	}
	if err := num.SaveNpyBytes(filepath.Join(dir, labels+".npy"), y); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCifar10(t *testing.T) {
	dir := t.TempDir()
	writeTestData(t, dir, "trainData", "trainLabel", 6, 1)
	writeTestData(t, dir, "valData", "valLabel", 3, 2)
	writeTestData(t, dir, "testData", "testLabel", 4, 3)
	l := Loader{Dir: dir, Shape: testShape, Classes: 4}
	data, err := l.Cifar10()
	if err != nil {
		t.Fatal(err)
	}
	for key, n := range map[string]int{"train": 6, "valid": 3, "test": 4} {
		d, ok := data[key]
		if !ok {
			t.Fatal("missing dataset", key)
		}
		t.Logf("%s: %s", key, d)
		if d.Len() != n || !num.SameShape(d.Shape(), testShape) || d.Classes() != 4 {
			t.Errorf("%s: invalid dataset %s", key, d)
		}
	}
	if labels := data["train"].ClassLabels(); labels[5] != 1 {
		t.Error("labels: got", labels)
	}
	if v := data["test"].Images.Data[0]; v != 3 {
		t.Error("test images: got", v)
	}
}

func TestLoadVariants(t *testing.T) {
	dir := t.TempDir()
	writeTestData(t, dir, "trainData2", "trainLabel2", 5, 1)
	writeTestData(t, dir, "testData", "testLabel", 4, 2)
	writeTestData(t, dir, "testData_negative", "testLabel", 4, 3)
	conf := DefaultConfig()
	conf.DataDir, conf.ImageShape, conf.Classes = dir, testShape, 4

	conf.DataSet = "cifar10_2"
	data, err := LoadData(conf)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2 || data["train"].Len() != 5 || data["test"].Len() != 4 {
		t.Error("case 2 data invalid", data)
	}

	conf.DataSet = "cifar10_dann_negative"
	if data, err = LoadData(conf); err != nil {
		t.Fatal(err)
	}
	if d := data["train2"]; d == nil || d.Images.Data[0] != 3 {
		t.Error("dann secondary training set invalid")
	}
	if d := data["test"]; d == nil || d.Images.Data[0] != 3 {
		t.Error("dann test set should be transformed images")
	}

	l := Loader{Dir: dir, Shape: testShape, Classes: 4}
	tests, err := l.CifarTest()
	if err != nil {
		t.Fatal(err)
	}
	if len(tests) != 1 || tests["negative"] == nil {
		t.Error("color test sets: got", tests)
	}

	for _, name := range []string{"cifar10_dann_sepia", "cifar10", "mnist"} {
		conf.DataSet = name
		if _, err = LoadData(conf); err == nil {
			t.Error(name, "expected error")
		} else {
			t.Log(err)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	l := Loader{Dir: dir, Shape: testShape, Classes: 3}
	writeTestData(t, dir, "images", "labels", 4, 1)
	if _, err := l.Dataset("images", "labels"); err == nil {
		t.Error("expected error for label out of range")
	}
	l.Classes = 4
	l.Shape = []int{5, 5, 3}
	if _, err := l.Dataset("images", "labels"); err == nil {
		t.Error("expected error for image size mismatch")
	}
	writeTestData(t, dir, "images2", "labels2", 3, 1)
	l.Shape = testShape
	if _, err := l.Dataset("images2", "labels"); err == nil {
		t.Error("expected error for image and label count mismatch")
	}
}
