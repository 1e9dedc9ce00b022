package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// StreamEvent is one token from a streaming generation. The final event
// carries Done and the serving model's name.
type StreamEvent struct {
	Content string
	Done    bool
	Model   string
}

// GenerateStream runs a streaming generation and delivers tokens on the
// returned channel. Cancelling the context tears the stream down and the
// token channel closes. The error channel yields at most one error and is
// closed when the stream finishes; a clean stream yields none.
func (c *Client) GenerateStream(ctx context.Context, prompt string, opts GenerateOptions) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		ctx, cancel := context.WithTimeout(ctx, generateTimeout)
		defer cancel()

		body, err := json.Marshal(c.buildRequest(prompt, opts, true))
		if err != nil {
			errs <- err
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpc.Do(req)
		if err != nil {
			errs <- fmt.Errorf("stream request: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- fmt.Errorf("stream failed with status %d", resp.StatusCode)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk struct {
				Response string `json:"response"`
				Done     bool   `json:"done"`
				Model    string `json:"model"`
			}
			// A malformed chunk is skipped, not fatal to the stream.
			if err := json.Unmarshal(line, &chunk); err != nil {
				continue
			}

			if chunk.Response != "" {
				select {
				case events <- StreamEvent{Content: chunk.Response, Model: chunk.Model}:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			if chunk.Done {
				select {
				case events <- StreamEvent{Done: true, Model: chunk.Model}:
				case <-ctx.Done():
					errs <- ctx.Err()
				}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("reading stream: %w", err)
		}
	}()

	return events, errs
}
