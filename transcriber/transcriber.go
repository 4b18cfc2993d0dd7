// Package transcriber turns finished recordings into transcripts. Each
// file is posted to a Whisper-compatible endpoint; the resulting text, or
// a failure notice, is pushed to an ntfy topic. Transport failures are
// logged and never propagate upstream.
package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"memod/log"
)

type Service struct {
	whisperURL string
	ntfyURL    string
	client     *http.Client
}

func New(whisperURL, ntfyURL string) *Service {
	return &Service{
		whisperURL: whisperURL,
		ntfyURL:    ntfyURL,
		client:     &http.Client{Timeout: 2 * time.Minute},
	}
}

// Run consumes finished recording paths until ctx is cancelled or the
// channel closes. Files arrive complete and closed; each is processed
// exactly once, never retried.
func (s *Service) Run(ctx context.Context, files <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-files:
			if !ok {
				return errors.New("recording channel closed")
			}
			s.process(ctx, path)
		}
	}
}

func (s *Service) process(ctx context.Context, path string) {
	log.Info("transcribing " + path)

	text, err := s.Transcribe(ctx, path)
	if err != nil {
		log.Errorf("transcription failed: %v", err)
		msg := fmt.Sprintf("Recording saved: %s\nError: %v", filepath.Base(path), err)
		if nerr := s.Notify(ctx, msg, true); nerr != nil {
			log.Errorf("failed to send error notification: %v", nerr)
		}
		return
	}

	log.Info("transcription successful")
	if err := s.Notify(ctx, text, false); err != nil {
		log.Errorf("failed to send notification: %v", err)
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

// Transcribe posts the raw audio bytes to the Whisper endpoint and returns
// the transcript text.
func (s *Service) Transcribe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading recording: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.whisperURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request to whisper server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading whisper response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper server error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var wr whisperResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", fmt.Errorf("whisper response parse error: %w", err)
	}
	return wr.Text, nil
}

// Notify pushes a plain-text message to the ntfy topic. Error notices
// carry a title and raised priority so they stand out on the phone.
func (s *Service) Notify(ctx context.Context, message string, isError bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ntfyURL, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if isError {
		req.Header.Set("X-Title", "Transcription Failed")
		req.Header.Set("X-Priority", "3")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}
