// Train a residual network on the CIFAR-10 data set.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jnb666/deepres/img"
	"github.com/jnb666/deepres/nnet"
	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

const deviceEnv = "DEEPRES_DEVICE"

type options struct {
	conf nnet.Config
	load bool
}

// parseArgs builds the config from the defaults, an optional -config json file and the command line
// flags, in increasing order of priority. The device falls back to the environment if not set.
func parseArgs(args []string, getenv func(string) string, output io.Writer) (opts options, err error) {
	conf := nnet.DefaultConfig()
	if file := configArg(args); file != "" {
		if conf, err = nnet.LoadConfig(file); err != nil {
			fmt.Fprintln(output, err)
			return opts, err
		}
		conf.Layers = nil
	}
	augment := 0
	if conf.Augment {
		augment = 1
	}
	fs := flag.NewFlagSet("resnet", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.String("config", "", "Load settings from json config file")
	aliasString(fs, &conf.Output, "Name of output model directory", conf.Output, "o", "output")
	aliasString(fs, &conf.Input, "Name of input model directory", conf.Input, "i", "input")
	aliasInt(fs, &conf.InputEpoch, "Epoch of input model checkpoint", conf.InputEpoch, "ie", "input_epoch")
	aliasInt(fs, &conf.MaxEpoch, "Number of training epochs", conf.MaxEpoch, "e", "epochs")
	aliasInt(fs, &conf.TrainBatch, "Batch size", conf.TrainBatch, "b", "batch_size")
	aliasString(fs, &conf.Device, "Compute device: cpu or cpu:<workers>", conf.Device, "g", "device")
	aliasFloat(fs, &conf.Eta, "Initial learning rate", conf.Eta, "lr", "learning_rate")
	aliasInt(fs, &augment, "Random crop and flip of training images: 0=off 1=on", augment, "au", "augmentation")
	fs.StringVar(&conf.DataSet, "data", conf.DataSet, "Data set: cifar10, cifar10_2 or cifar10_dann_<variant>")
	fs.StringVar(&conf.DataDir, "datadir", conf.DataDir, "Directory with .npy data files")
	fs.StringVar(&conf.ModelDir, "modeldir", conf.ModelDir, "Base directory for saved models")
	fs.Int64Var(&conf.RandSeed, "seed", conf.RandSeed, "Random number seed, or 0 for random")
	fs.IntVar(&conf.ResBlocks, "blocks", conf.ResBlocks, "Residual blocks per stage")
	fs.IntVar(&conf.DebugLevel, "debug", conf.DebugLevel, "Debug logging level")
	fs.BoolVar(&opts.load, "load", false, "Load initial weights from the input model")
	if err = fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(output, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return opts, errors.Errorf("unexpected arguments: %v", fs.Args())
	}
	conf.Augment = augment != 0
	if conf.Device == "" {
		conf.Device = getenv(deviceEnv)
	}
	opts.conf = conf
	return opts, nil
}

func main() {
	log.SetFlags(0)
	opts, err := parseArgs(os.Args[1:], os.Getenv, os.Stderr)
	if err == flag.ErrHelp {
		os.Exit(0)
	}
	if err != nil {
		os.Exit(2)
	}
	conf := opts.conf

	dev, err := num.NewDevice(conf.Device)
	nnet.CheckErr(err)
	conf.Device = dev.String()
	rng := nnet.SetSeed(conf.RandSeed)

	data, err := nnet.LoadData(conf)
	nnet.CheckErr(err)
	for _, key := range nnet.DataTypes {
		if d, ok := data[key]; ok {
			fmt.Printf("%s: %s\n", key, d)
		}
	}
	train := data["train"]
	var mean, std []float32
	if conf.Normalise {
		mean, std = img.GetStats(train.Images)
		fmt.Printf("mean = %.2f stddev = %.2f\n", mean, std)
		for _, d := range data {
			img.Normalise(d.Images, mean, std)
		}
	}

	conf = nnet.ResNet(conf, conf.ResBlocks, conf.Classes)
	net, err := nnet.New(dev, conf, train.Shape(), rng)
	nnet.CheckErr(err)
	if conf.DebugLevel >= 1 {
		fmt.Println(net)
	}
	if opts.load {
		dir := conf.InputDir()
		log.Println("loading weights from", dir)
		nnet.CheckErr(nnet.LoadWeights(dir, nnet.ModelScope, net.Params))
	}

	outDir := conf.Dir()
	nnet.CheckErr(os.MkdirAll(outDir, 0755))
	nnet.CheckErr(conf.Save(filepath.Join(outDir, "config.json")))

	test, err := nnet.NewTestBase(conf, data, outDir)
	nnet.CheckErr(err)
	var aug nnet.Augmenter
	if conf.Augment {
		aug = img.NewTransformer(dev, img.Augment, conf.PadSize, rng)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = nnet.Train(ctx, net, train, test, aug)
	if err == context.Canceled {
		log.Println("training interrupted")
	} else {
		nnet.CheckErr(err)
	}
	fmt.Println(test.Summary())

	batch := conf.TestBatch
	if batch <= 0 {
		batch = conf.TrainBatch
	}
	if d, ok := data["test"]; ok {
		fmt.Printf("test accuracy = %.4f\n", net.Evaluate(d, batch))
		if conf.DebugLevel >= 1 {
			predict(net, d, batch)
		}
	}
	variants, err := nnet.LoadCifarTest(conf.DataDir)
	nnet.CheckErr(err)
	for _, name := range nnet.Variants {
		d, ok := variants[name]
		if !ok {
			continue
		}
		if conf.Normalise {
			img.Normalise(d.Images, mean, std)
		}
		fmt.Printf("%s test accuracy = %.4f\n", name, net.Evaluate(d, batch))
	}
}

// config file name from -config file or -config=file
func configArg(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == "config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(name, "config=") {
			return strings.TrimPrefix(name, "config=")
		}
	}
	return ""
}

// print predicted and true classes for the first batch
func predict(net *nnet.Network, d *nnet.Dataset, batch int) {
	x, y := d.Batch(0, min(batch, d.Len()))
	fmt.Println("predict:", net.Predict(x))
	fmt.Println("labels: ", num.Unhot(y))
}

func aliasString(fs *flag.FlagSet, p *string, usage, value string, names ...string) {
	for _, name := range names {
		fs.StringVar(p, name, value, usage)
	}
}

func aliasInt(fs *flag.FlagSet, p *int, usage string, value int, names ...string) {
	for _, name := range names {
		fs.IntVar(p, name, value, usage)
	}
}

func aliasFloat(fs *flag.FlagSet, p *float64, usage string, value float64, names ...string) {
	for _, name := range names {
		fs.Float64Var(p, name, value, usage)
	}
}
