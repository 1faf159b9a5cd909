package mstranslator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// Audio formats accepted by the speech operations.
const (
	AudioFormatWAV = "audio/wav"
	AudioFormatMP3 = "audio/mp3"
)

// SpeakOptions carries the optional knobs for the speech operations.
// A nil value means defaults.
type SpeakOptions struct {
	Format      string // AudioFormatWAV (default) or AudioFormatMP3
	BestQuality bool   // request MaxQuality audio instead of MinSize
}

// Speak synthesizes speech for text in the given language and returns the
// URL of the generated audio.
func (t *Translator) Speak(ctx context.Context, text, lang string, opts *SpeakOptions) (string, error) {
	var o SpeakOptions
	if opts != nil {
		o = *opts
	}
	if o.Format == "" {
		o.Format = AudioFormatWAV
	}
	if o.Format != AudioFormatWAV && o.Format != AudioFormatMP3 {
		return "", fmt.Errorf("invalid audio format %q", o.Format)
	}
	quality := "MinSize"
	if o.BestQuality {
		quality = "MaxQuality"
	}

	params := url.Values{
		"text":     {text},
		"language": {lang},
		"format":   {o.Format},
		"options":  {quality},
	}
	raw, err := t.makeRequest(ctx, "Speak", params)
	if err != nil {
		return "", err
	}

	var audioURL string
	if err := json.Unmarshal(raw, &audioURL); err != nil {
		return "", fmt.Errorf("failed to decode Speak response: %w", err)
	}
	return audioURL, nil
}

// SpeakTo synthesizes speech for text and streams the raw audio into w.
func (t *Translator) SpeakTo(ctx context.Context, w io.Writer, text, lang string, opts *SpeakOptions) error {
	audioURL, err := t.Speak(ctx, text, lang, opts)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create audio request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("audio download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audio download failed with status %d", resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	return nil
}

// SpeakToFile synthesizes speech for text and saves the audio to path.
// The file is removed again if the download fails partway.
func (t *Translator) SpeakToFile(ctx context.Context, path, text, lang string, opts *SpeakOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}

	if err := t.SpeakTo(ctx, f, text, lang, opts); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close audio file: %w", err)
	}
	return nil
}
