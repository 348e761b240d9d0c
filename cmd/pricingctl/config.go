package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/happydiving/pricing-engine/pkg/client"
)

// cliState holds the global flags and the client built from them.
type cliState struct {
	baseURL string
	timeout time.Duration
	retries int
	output  string

	out io.Writer
	api *client.Client
}

func (s *cliState) connect() error {
	if s.baseURL == "" {
		return errors.New("--base-url is required")
	}
	if s.retries < 0 {
		return errors.New("--retries must be >= 0")
	}
	if s.output != "json" && s.output != "yaml" {
		return fmt.Errorf("unsupported output format %q (json, yaml)", s.output)
	}

	api, err := client.New(s.baseURL,
		client.WithHTTPClient(&http.Client{Timeout: s.timeout}),
		client.WithRetries(s.retries),
	)
	if err != nil {
		return err
	}
	s.api = api
	return nil
}

func (s *cliState) withContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// print writes v in the selected format. YAML goes through the JSON form so
// decimals keep their string encoding.
func (s *cliState) print(v any) error {
	if s.output == "yaml" {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(s.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}

	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
