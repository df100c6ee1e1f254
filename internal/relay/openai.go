package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	upstreamTemperature = 0.7
	upstreamMaxTokens   = 600
)

// OpenAIResponder talks to an OpenAI-compatible chat-completion endpoint.
type OpenAIResponder struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewOpenAIResponder(baseURL, apiKey string, timeout time.Duration) *OpenAIResponder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIResponder{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type upstreamMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string            `json:"model"`
	Messages    []upstreamMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
	Stream      bool              `json:"stream,omitempty"`
}

// send issues the completion request. One attempt only: a failed call
// surfaces to the caller rather than being retried here.
func (r *OpenAIResponder) send(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	messages := make([]upstreamMessage, 0, len(req.Turns))
	for _, t := range req.Turns {
		messages = append(messages, upstreamMessage{Role: string(t.Role), Content: t.Content})
	}

	payload, err := json.Marshal(completionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: upstreamTemperature,
		MaxTokens:   upstreamMaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)

	res, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		res.Body.Close()
		return nil, &UpstreamError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return res, nil
}

// Reply issues one blocking completion request and extracts the first
// choice's message content. A missing field reads as an empty reply, not an
// error.
func (r *OpenAIResponder) Reply(ctx context.Context, req Request) (string, error) {
	res, err := r.send(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// StreamReply issues a streaming completion request and relays delta
// fragments through onDelta as they arrive, returning the accumulated text.
// A mid-stream transport failure stops emission and returns whatever was
// accumulated with a nil error so the caller can persist the partial reply.
func (r *OpenAIResponder) StreamReply(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	res, err := r.send(ctx, req, true)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	// The scanner buffers raw bytes and only hands back complete lines, so
	// multi-byte runes split across network chunks reassemble before any
	// string decoding happens.
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			// End of stream, regardless of whether the body closes after.
			return out.String(), nil
		}

		var frame struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			log.Printf("relay: dropping unparseable stream frame: %v", err)
			continue
		}
		if len(frame.Choices) == 0 {
			continue
		}
		delta := frame.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				// Caller went away; stop reading and let the partial
				// accumulation be persisted.
				return out.String(), nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("relay: upstream stream ended early: %v", err)
	}
	return out.String(), nil
}
