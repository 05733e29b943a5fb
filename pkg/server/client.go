package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bmease/race-spoilers/pkg/router"
)

// Watch connects to a server's event stream and calls fn for every
// notification until ctx is canceled or the stream ends. A canceled
// context is not an error.
func Watch(ctx context.Context, baseURL string, fn func(router.Message)) error {
	url := strings.TrimRight(baseURL, "/") + "/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("connect %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect %s: %s", url, resp.Status)
	}

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var msg router.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		fn(msg)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}
