// Package webapi synthesizes speech through a hosted text-to-speech API that
// answers with the location of an mp3 file.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/voice-relay/internal/core"
)

// DefaultURL is the speech endpoint used when none is configured.
const DefaultURL = "https://api.getchipbot.com/api/v1/utility/text-to-speech"

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

var (
	// ErrEmptyText is returned for an empty synthesis request.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrMissingLocation indicates a response without an audio location.
	ErrMissingLocation = errors.New("speech response has no audio location")
	// ErrEmptyAudio indicates that the audio download returned no bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrUnexpectedStatus indicates a non-200 answer from the API.
	ErrUnexpectedStatus = errors.New("speech API returned non-OK status")
)

// Client is a core.SpeechBackend backed by the web API.
type Client struct {
	httpClient *http.Client
	url        string
	clipsDir   string
}

type speechRequest struct {
	Text string `json:"text"`
}

type speechResponse struct {
	Data struct {
		Location string `json:"Location"`
	} `json:"data"`
}

// NewClient creates a client posting to url and writing clips into clipsDir.
// An empty url selects DefaultURL; an empty clipsDir the system temp directory.
func NewClient(url, clipsDir string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		url:      url,
		clipsDir: clipsDir,
	}
}

// Synthesize asks the API for speech, downloads the mp3 it points to and
// stores it as a clip.
func (c *Client) Synthesize(ctx context.Context, text string) (*core.SpeechClip, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	location, err := c.requestLocation(ctx, text)
	if err != nil {
		return nil, err
	}

	audioData, err := c.download(ctx, location)
	if err != nil {
		return nil, err
	}

	clip, err := core.NewSpeechClip(c.clipsDir, core.FormatMP3, audioData)
	if err != nil {
		return nil, fmt.Errorf("failed to store speech: %w", err)
	}

	return clip, nil
}

func (c *Client) requestLocation(ctx context.Context, text string) (string, error) {
	requestBody, err := json.Marshal(speechRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeJSON)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request to speech API at %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	var parsed speechResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
	if decodeErr != nil {
		return "", fmt.Errorf("failed to decode speech response: %w", decodeErr)
	}

	if parsed.Data.Location == "" {
		return "", ErrMissingLocation
	}

	return parsed.Data.Location, nil
}

func (c *Client) download(ctx context.Context, location string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to download speech from %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	return fmt.Errorf("%w: %s, body: %s", ErrUnexpectedStatus, resp.Status, string(body))
}
