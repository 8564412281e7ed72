// Command recognize reads license plates from image files.
//
//	recognize [-engine gemini|anthropic|openai|ollama] FILE...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"alpd/api/internal/app"
	"alpd/api/internal/config"
	"alpd/api/internal/plate"
	"alpd/api/internal/session"
	"alpd/api/internal/util"
)

type fileResult struct {
	File   string                `json:"file"`
	Result plate.DetectionResult `json:"result"`
}

func main() {
	engineName := flag.String("engine", "", "gemini | anthropic | openai | ollama (default: LLM_PROVIDER)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: recognize [-engine NAME] FILE...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	engines, eng, err := app.Engines(cfg)
	if err != nil {
		log.Fatalf("engines: %v", err)
	}
	if *engineName != "" {
		if eng, err = engines.GetEngine(*engineName); err != nil {
			log.Fatal(err)
		}
	}

	os.Exit(run(context.Background(), eng, flag.Args(), os.Stdout, os.Stderr))
}

// run analyzes each file in order through one session and returns the exit code.
func run(ctx context.Context, rec session.Recognizer, paths []string, stdout, stderr io.Writer) int {
	sess := session.New("cli", rec)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	code := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			code = 1
			continue
		}
		mime := util.PickMIME("", util.MIMEFromFilename(path), data)
		if err := sess.SelectImage(util.EncodeDataURL(mime, data)); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			code = 1
			continue
		}
		res, err := sess.Analyze(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", path, plate.UserMessage(err))
			code = 1
			continue
		}
		_ = enc.Encode(fileResult{File: path, Result: res})
	}
	return code
}
