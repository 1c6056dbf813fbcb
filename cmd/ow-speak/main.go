// ow-speak sends text to a running ow-engine and plays back or saves
// the synthesized audio. Text comes from the arguments or stdin:
//
//	ow-speak -out reply.mp3 "hello there"
//	echo "hello there" | ow-speak | mpg123 -
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8090", "ow-engine base URL")
	token := flag.String("token", os.Getenv("OW_AUTH_TOKEN"), "bearer token, if the engine requires one")
	voice := flag.String("voice", "", "vendor voice id override")
	model := flag.String("model", "", "vendor model override")
	out := flag.String("out", "-", "output file, - for stdout")
	flag.Parse()

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fatal("reading stdin: %v", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		fatal("no text to speak")
	}

	payload, err := json.Marshal(map[string]string{
		"text":  text,
		"voice": *voice,
		"model": *model,
	})
	if err != nil {
		fatal("encoding request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, *addr+"/api/v1/speak", bytes.NewReader(payload))
	if err != nil {
		fatal("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fatal("calling ow-engine: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		fatal("ow-engine returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dst := os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fatal("creating %s: %v", *out, err)
		}
		defer f.Close()
		dst = f
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		fatal("writing audio: %v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ow-speak: "+format+"\n", args...)
	os.Exit(1)
}
