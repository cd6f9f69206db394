// ask sends one support question from the command line.
//
// Examples:
//
//	export GEMINI_API_KEY=...
//	go run ./cmd/ask -q "printer won't turn on"
//
//	export OPENAI_API_KEY=...
//	go run ./cmd/ask -provider openai -model gpt-4o-mini -image screen.png -q "what does this mean?"
//
//	echo "vpn keeps dropping" | go run ./cmd/ask -stdin -provider dummy -json
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Protocol-Lattice/go-support-desk/src/bootstrap"
	"github.com/Protocol-Lattice/go-support-desk/src/config"
	"github.com/Protocol-Lattice/go-support-desk/src/logging"
	"github.com/Protocol-Lattice/go-support-desk/src/models"
	"github.com/Protocol-Lattice/go-support-desk/src/ocr"
	"github.com/Protocol-Lattice/go-support-desk/src/support"
)

var (
	flagConfig   = flag.String("config", "", "Path to a TOML config file")
	flagProvider = flag.String("provider", "", "LLM provider: gemini-message|gemini-rest|gemini|openai|anthropic|ollama|dummy")
	flagModel    = flag.String("model", "", "Model ID for the selected provider")
	flagQuestion = flag.String("q", "", "Support question (ignored if -stdin is set)")
	flagStdin    = flag.Bool("stdin", false, "Read the question from STDIN")
	flagImage    = flag.String("image", "", "Optional screenshot (png, jpg, jpeg)")
	flagJSON     = flag.Bool("json", false, "Print JSON {id, answer, provider, model, cached}")
	flagPrompt   = flag.Bool("show-prompt", false, "Print the filled prompt and exit without calling the model")
	flagTimeout  = flag.Duration("timeout", 90*time.Second, "Overall request timeout")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		fail(err)
	}
	if *flagProvider != "" {
		cfg.LLM.Provider = *flagProvider
	}
	if *flagModel != "" {
		cfg.LLM.Model = *flagModel
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}
	// Logs go to stderr and stay quiet unless something fails.
	logger, err := logging.New("error", "console")
	if err != nil {
		fail(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *flagTimeout)
	defer cancel()

	question, err := getQuestion(*flagQuestion, *flagStdin, os.Stdin)
	if err != nil {
		fail(err)
	}
	img, err := loadImage(*flagImage, cfg.Attachments.MaxBytes)
	if err != nil {
		fail(err)
	}

	rt, err := bootstrap.Build(ctx, cfg, logger, nil)
	if err != nil {
		fail(err)
	}
	defer rt.Close(context.Background())

	sub := support.Submission{Question: question, Attachment: img}
	if *flagPrompt {
		_, filled, err := rt.Service.Prepare(ctx, sub)
		if err != nil {
			fail(err)
		}
		fmt.Print(filled)
		return
	}

	ans, err := rt.Service.Submit(ctx, sub)
	if errors.Is(err, support.ErrEmptyQuestion) {
		fmt.Fprintln(os.Stderr, support.EmptyQuestionWarning)
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}

	if *flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"id":       ans.ID,
			"answer":   ans.Text,
			"provider": ans.Provider,
			"model":    ans.Model,
			"cached":   ans.Cached,
		})
		return
	}
	fmt.Println(ans.Text)
}

func getQuestion(flagQ string, useStdin bool, r io.Reader) (string, error) {
	if useStdin {
		var b strings.Builder
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			b.WriteString(sc.Text())
			b.WriteByte('\n')
		}
		if err := sc.Err(); err != nil {
			return "", err
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
	return flagQ, nil
}

func loadImage(path string, maxBytes int64) (*ocr.Image, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ocr.Decode(path, "", data, maxBytes)
}

func fail(err error) {
	if se, ok := models.AsStatusError(err); ok {
		fmt.Fprintf(os.Stderr, "error: %s (provider %s)\n", se.Error(), se.Provider)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
