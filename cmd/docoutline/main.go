package main

import (
	"github.com/dgallion1/docoutline/internal/cli"
	"github.com/dgallion1/docoutline/internal/extract/ocr"
)

func main() {
	cli.EnableOCR(ocr.Register)
	cli.Execute()
}
