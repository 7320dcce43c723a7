package webagent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

const maxFrameSize = 1024 * 1024

func (c *Client) streamHTTP(ctx context.Context, path string, body StepsRequest, onFrame FrameHandler) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream, application/x-ndjson")

	resp, err := c.stream.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	count, err := readFrames(resp.Body, isEventStream(resp.Header.Get("Content-Type")), onFrame)
	debugLog.Debugf("Stream %s closed after %d frames", path, count)
	if err != nil {
		return fmt.Errorf("stream interrupted after %d frames: %w", count, err)
	}
	return nil
}

func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/event-stream"
}

// readFrames splits a step stream into frames. Server-sent events are joined
// per event from their data lines; any other body is one frame per non-empty line.
func readFrames(r io.Reader, sse bool, onFrame FrameHandler) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	count := 0
	emit := func(frame string) {
		if frame == "" || frame == "[DONE]" {
			return
		}
		count++
		onFrame([]byte(frame))
	}

	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		if !sse {
			emit(strings.TrimSpace(line))
			continue
		}
		if line == "" {
			if len(dataLines) > 0 {
				emit(strings.Join(dataLines, "\n"))
				dataLines = dataLines[:0]
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	if len(dataLines) > 0 {
		emit(strings.Join(dataLines, "\n"))
	}
	return count, scanner.Err()
}
