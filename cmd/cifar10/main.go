// Convert the CIFAR-10 binary batches to .npy files.
//
// Images are written as uint8 values in height, width, channel order and labels as uint8 class indices.
// The last -valid images of the training batches are held out as the validation set. trainData2 has
// the full training set for the case 2 and domain adaptation runs.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jnb666/deepres/nnet"
	"github.com/jnb666/deepres/num"
	"github.com/pkg/errors"
)

const (
	imageWidth  = 32
	imageHeight = 32
	imageSize   = imageWidth * imageHeight
	imageBytes  = imageSize*3 + 1
)

type batch struct {
	images []uint8
	labels []uint8
}

func (b *batch) add(d *batch) {
	b.images = append(b.images, d.images...)
	b.labels = append(b.labels, d.labels...)
}

func (b *batch) slice(start, end int) *batch {
	return &batch{images: b.images[start*imageSize*3 : end*imageSize*3], labels: b.labels[start:end]}
}

func main() {
	log.SetFlags(0)
	srcDir := flag.String("src", "cifar-10-batches-bin", "directory with cifar-10 binary files")
	outDir := flag.String("out", nnet.DefaultConfig().DataDir, "output directory for .npy files")
	valid := flag.Int("valid", 5000, "number of training images to hold out for validation")
	flag.Parse()

	classes, err := readClasses(filepath.Join(*srcDir, "batches.meta.txt"))
	nnet.CheckErr(err)
	log.Println("classes:", strings.Join(classes, ","))

	train := &batch{}
	for i := 1; i <= 5; i++ {
		d, err := loadBatch(filepath.Join(*srcDir, fmt.Sprintf("data_batch_%d.bin", i)))
		nnet.CheckErr(err)
		train.add(d)
	}
	test, err := loadBatch(filepath.Join(*srcDir, "test_batch.bin"))
	nnet.CheckErr(err)

	n := len(train.labels)
	if *valid < 0 || *valid >= n {
		nnet.CheckErr(errors.Errorf("invalid validation size %d", *valid))
	}
	nnet.CheckErr(os.MkdirAll(*outDir, 0755))
	nnet.CheckErr(save(*outDir, "trainData", "trainLabel", train.slice(0, n-*valid)))
	if *valid > 0 {
		nnet.CheckErr(save(*outDir, "valData", "valLabel", train.slice(n-*valid, n)))
	}
	nnet.CheckErr(save(*outDir, "trainData2", "trainLabel2", train))
	nnet.CheckErr(save(*outDir, "testData", "testLabel", test))
}

func save(dir, images, labels string, b *batch) error {
	log.Printf("writing %d images to %s", len(b.labels), filepath.Join(dir, images+".npy"))
	n := len(b.labels)
	if err := num.SaveNpyBytes(filepath.Join(dir, images+".npy"), b.images, n, imageHeight, imageWidth, 3); err != nil {
		return err
	}
	return num.SaveNpyBytes(filepath.Join(dir, labels+".npy"), b.labels, n)
}

// load batch of cifar-10 images and labels in binary format, converting from planar to interleaved channels
func loadBatch(pathName string) (*batch, error) {
	f, err := os.Open(pathName)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	r := bufio.NewReader(f)
	b := &batch{}
	buf := make([]uint8, imageBytes)
	for {
		_, err := io.ReadFull(r, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error reading from %s", pathName)
		}
		b.labels = append(b.labels, buf[0])
		for j := 0; j < imageSize; j++ {
			b.images = append(b.images, buf[1+j], buf[1+imageSize+j], buf[1+imageSize*2+j])
		}
	}
	log.Printf("read %d images from %s", len(b.labels), pathName)
	return b, nil
}

// load class descriptions from file
func readClasses(pathName string) ([]string, error) {
	f, err := os.Open(pathName)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	classes := []string{}
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line != "" {
			classes = append(classes, line)
		}
	}
	return classes, s.Err()
}
