package transcriber

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptrace"
	"time"

	"murmur/encoder"
	"murmur/log"
)

const groqURL = "https://api.groq.com/openai/v1/audio/transcriptions"

// Groq transcribes via the hosted whisper-large-v3-turbo endpoint. Warm-up
// pre-establishes the TLS connection so the first real request skips the
// handshake.
type Groq struct {
	apiKey   string
	language string
	apiURL   string
	model    string
	client   *http.Client
}

func NewGroq(apiKey, language string) *Groq {
	return &Groq{
		apiKey:   apiKey,
		language: language,
		apiURL:   groqURL,
		model:    "whisper-large-v3-turbo",
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

func (g *Groq) Name() string { return "groq" }

// Prepare warms the connection pool. Failures are not fatal; the real
// request will simply pay the handshake cost.
func (g *Groq) Prepare(ctx context.Context, progress func(float64)) error {
	if progress != nil {
		progress(0)
	}
	var tlsStart time.Time
	var tlsDuration time.Duration
	trace := &httptrace.ClientTrace{
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone:  func(_ tls.ConnectionState, _ error) { tlsDuration = time.Since(tlsStart) },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), "HEAD", g.apiURL, nil)
	if err != nil {
		return nil
	}
	resp, err := g.client.Do(req)
	if err != nil {
		log.Warnf("groq warm-up failed: %v", err)
		return nil
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	log.Infof("groq connection warmed, tls handshake %s", tlsDuration)
	if progress != nil {
		progress(1)
	}
	return nil
}

type groqResponse struct {
	Text string `json:"text"`
}

func (g *Groq) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wav := encoder.WAVBytes(samples, sampleRate)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(wav); err != nil {
		return "", err
	}
	writer.WriteField("model", g.model)
	writer.WriteField("response_format", "json")
	if g.language != "" {
		writer.WriteField("language", g.language)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("groq API error %d: %s", resp.StatusCode, string(respBody))
	}

	var gResp groqResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return "", fmt.Errorf("groq response parse error: %w", err)
	}
	return gResp.Text, nil
}
