// Generate the color transformed test sets testData_<variant>.npy from testData.npy.
package main

import (
	"flag"
	"log"
	"path/filepath"
	"strings"

	"github.com/jnb666/deepres/img"
	"github.com/jnb666/deepres/nnet"
	"github.com/jnb666/deepres/num"
)

func main() {
	log.SetFlags(0)
	conf := nnet.DefaultConfig()
	dataDir := flag.String("datadir", conf.DataDir, "directory with .npy data files")
	variants := flag.String("variants", strings.Join(nnet.Variants, ","), "comma separated list of transforms")
	device := flag.String("device", "", "compute device: cpu or cpu:<workers>")
	seed := flag.Int64("seed", 42, "random number seed")
	preview := flag.Int("preview", 0, "save a png grid with this many rows and columns of each variant")
	flag.Parse()

	dev, err := num.NewDevice(*device)
	nnet.CheckErr(err)
	rng := nnet.SetSeed(*seed)
	l := nnet.Loader{Dir: *dataDir, Shape: conf.ImageShape, Classes: conf.Classes}
	images, err := l.Images("testData")
	nnet.CheckErr(err)
	scale := img.Max(images)
	log.Printf("loaded %v test images, max value %g", images.Dims(), scale)
	if *preview > 0 {
		nnet.CheckErr(img.SavePNG(filepath.Join(*dataDir, "testData.png"), img.Grid(images, *preview, *preview, scale)))
	}

	for _, name := range strings.Split(*variants, ",") {
		name = strings.TrimSpace(name)
		fn, err := img.ColorTransform(name)
		nnet.CheckErr(err)
		out := fn(dev, images, rng)
		file := filepath.Join(*dataDir, "testData_"+name+".npy")
		log.Println("writing", file)
		nnet.CheckErr(num.SaveNpy(file, out))
		if *preview > 0 {
			m := img.Grid(out, *preview, *preview, scale)
			nnet.CheckErr(img.SavePNG(filepath.Join(*dataDir, "testData_"+name+".png"), m))
		}
	}
}
