package extractor

import (
	"context"
	"io"
	"os"
	"runtime/debug"

	"github.com/johbar/tesseract-purego/internal/imageparser"
	"github.com/johbar/tesseract-purego/pkg/tessdata"
)

// PrintText recognizes the image file at path ("-" for stdin) and writes its text to w.
func (e *Extractor) PrintText(path string, w io.Writer) error {
	doc, err := imageparser.Open(path, e.maxPixels())
	if err != nil {
		e.log.Error("Could not process image", "path", path, "err", err)
		return err
	}
	res, err := e.run(context.Background(), doc, RequestParams{Format: FormatText})
	if err != nil {
		e.log.Error("Recognition failed", "path", path, "err", err)
		return err
	}
	_, err = w.Write(res.Body)
	return err
}

// LogConfig logs build info and warns about languages missing from the data directory.
func (e *Extractor) LogConfig() {
	buildinfo, _ := debug.ReadBuildInfo()
	e.log.Debug("Info", "buildinfo", buildinfo)
	if os.Getenv("GOMEMLIMIT") != "" {
		e.log.Debug("GOMEMLIMIT", "Bytes", debug.SetMemoryLimit(-1), "MBytes", debug.SetMemoryLimit(-1)/1024/1024)
	}
	dir := e.tesConfig.TessdataPath
	if dir == "" {
		dir = tessdata.Resolve()
	}
	installed, err := tessdata.Installed(dir)
	if err != nil {
		e.log.Warn("Could not list installed languages", "datapath", dir, "err", err)
		return
	}
	e.log.Info("Tesseract configured", "datapath", dir, "languages", e.tesConfig.TesseractLangs, "installed", installed, "poolSize", e.tesConfig.PoolSize)
}
