package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/robotalks/meshota/pkg/image"
)

var (
	output = "scratchpad.otap"
)

func init() {
	flag.StringVar(&output, "o", output, "Output file.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-o FILE] [VERSION:]AREA_ID:PATH...\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var files []image.File
	for _, arg := range flag.Args() {
		spec, err := image.ParseFileSpec(arg)
		if err != nil {
			log.Fatalln(err)
		}
		f, err := image.LoadFile(spec)
		if err != nil {
			log.Fatalln(err)
		}
		files = append(files, f)
	}
	data, err := image.Build(files...)
	if err != nil {
		log.Fatalln(err)
	}
	if err := ioutil.WriteFile(output, data, 0644); err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("%s: %d bytes, %d files, digest %s\n", output, len(data), len(files), image.DigestOf(data))
}
