// Package deepgram implements the supported speech recognizer variant over
// Deepgram's streaming websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jwulff/hush/internal/voice"
)

// Config controls the Deepgram connection and the audio fed into it.
type Config struct {
	APIKey     string
	APIBaseURL string
	Model      string
	Language   string

	SampleRate int
	Channels   int
	ChunkSize  int

	InputFormat string
	InputDevice string
}

// Recognizer implements voice.Recognizer. Each Start opens one websocket
// session and one capture session; the returned stream emits finalized
// transcript chunks and never restarts itself.
type Recognizer struct {
	cfg     Config
	capture voice.AudioCapture
	log     zerolog.Logger
}

// NewRecognizer creates a recognizer with defaults filled in.
func NewRecognizer(cfg Config, capture voice.AudioCapture, log zerolog.Logger) *Recognizer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	return &Recognizer{cfg: cfg, capture: capture, log: log}
}

// Start dials the listen endpoint and begins pumping microphone audio.
func (r *Recognizer) Start(ctx context.Context) (voice.Stream, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is not configured: %w", voice.ErrUnsupported)
	}

	wsURL, err := listenURL(r.cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+r.cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("deepgram rejected credentials (%d): %w", resp.StatusCode, voice.ErrPermission)
		}
		return nil, fmt.Errorf("connect to deepgram websocket: %w", err)
	}

	audio, err := r.capture.Start(ctx, voice.AudioConfig{
		SampleRate:  r.cfg.SampleRate,
		Channels:    r.cfg.Channels,
		InputFormat: r.cfg.InputFormat,
		InputDevice: r.cfg.InputDevice,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("start audio capture: %w", err)
	}

	s := &stream{
		conn:      conn,
		audio:     audio,
		chunkSize: r.cfg.ChunkSize,
		utter:     make(chan string, 64),
		done:      make(chan struct{}),
	}

	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	go func() {
		s.wg.Wait()
		_ = conn.Close()
		_ = audio.Stop()
		close(s.utter)
		close(s.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

type stream struct {
	conn      *websocket.Conn
	audio     voice.AudioSession
	chunkSize int

	utter chan string
	done  chan struct{}
	wg    sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (s *stream) Utterances() <-chan string { return s.utter }

func (s *stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears the session down. Idempotent and safe mid-delivery.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.audio.Stop()
		_ = s.conn.Close()
	})
	<-s.done
	return s.Err()
}

func (s *stream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// writeLoop pumps PCM chunks to the socket until the capture ends, then
// asks the service to flush and close.
func (s *stream) writeLoop() {
	defer s.wg.Done()

	buf := make([]byte, s.chunkSize)
	for {
		n, err := s.audio.Read(buf)
		if n > 0 {
			if werr := s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				s.setErr(fmt.Errorf("send audio: %w", werr))
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.setErr(fmt.Errorf("audio capture: %w", err))
			}
			break
		}
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		s.setErr(fmt.Errorf("close stream: %w", err))
	}
}

// readLoop parses recognition results and forwards finalized transcripts.
// Only the fact that speech occurred and its text leave this loop; nothing
// is written anywhere.
func (s *stream) readLoop() {
	defer s.wg.Done()

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("read recognition event: %w", err))
			return
		}

		var resp listenResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			continue
		}

		if strings.EqualFold(resp.Type, "Error") {
			msg := strings.TrimSpace(resp.Message)
			if msg == "" {
				msg = "deepgram returned an unknown error"
			}
			s.setErr(fmt.Errorf("deepgram: %s", msg))
			return
		}

		if !resp.IsFinal && !resp.SpeechFinal {
			continue
		}
		transcript := resp.transcript()
		if transcript == "" {
			continue
		}

		select {
		case s.utter <- transcript:
		default:
			// Consumer is behind; dropping is better than stalling the socket.
		}
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

// listenURL builds the websocket listen endpoint from the HTTP base URL.
func listenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.APIBaseURL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	u, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid deepgram base URL: %w", err)
	}

	q := u.Query()
	q.Set("model", cfg.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	q.Set("channels", fmt.Sprintf("%d", cfg.Channels))
	q.Set("interim_results", "false")
	if cfg.Language != "" {
		q.Set("language", cfg.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
