// Package mstranslator provides a client for the Microsoft Translator V2
// HTTP API: text translation, language detection, sentence breaking and
// text-to-speech.
//
// Every request is authenticated with a short-lived bearer token obtained
// from the Cognitive Services token endpoint. The client caches the token
// and refreshes it transparently, so callers supply their subscription key
// once:
//
//	client := mstranslator.New(subscriptionKey)
//
//	translated, err := client.Translate(ctx, "hello world", "de", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(translated)
package mstranslator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	// defaultAPIURL is the base URL of the Translator V2 ajax endpoints.
	defaultAPIURL = "https://api.microsofttranslator.com/v2/ajax.svc/"

	requestTimeout = 30 * time.Second

	defaultCategory = "general"
)

// Content types accepted by the translation operations.
const (
	ContentTypePlain = "text/plain"
	ContentTypeHTML  = "text/html"
)

const (
	maxBreakSentencesChars = 10000
	maxOriginalTextChars   = 1000
	maxTranslatedTextChars = 2000
	defaultMaxTranslations = 10
)

// Translator is a client for the Microsoft Translator V2 API. It holds no
// state besides its cached access token; one instance can serve many calls.
type Translator struct {
	auth       *AccessToken
	httpClient *http.Client
	apiURL     string
	logger     zerolog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithHTTPClient replaces the HTTP client used for both API calls and
// token issuance.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Translator) {
		t.httpClient = c
		t.auth.httpClient = c
	}
}

// WithLogger installs a logger for debug events on token issuance and
// outbound requests. The default logger discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Translator) {
		t.logger = logger
		t.auth.logger = logger
	}
}

// WithAPIURL overrides the translation API base URL.
func WithAPIURL(u string) Option {
	return func(t *Translator) {
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		t.apiURL = u
	}
}

// WithTokenURL overrides the token issuance endpoint.
func WithTokenURL(u string) Option {
	return func(t *Translator) {
		t.auth.tokenURL = u
	}
}

// New creates a Translator authenticating with the given subscription key.
func New(subscriptionKey string, opts ...Option) *Translator {
	t := &Translator{
		auth:       NewAccessToken(subscriptionKey),
		httpClient: &http.Client{Timeout: requestTimeout},
		apiURL:     defaultAPIURL,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// makeRequest issues one authenticated GET against an API action and
// returns the raw JSON payload after error-string detection.
func (t *Translator) makeRequest(ctx context.Context, action string, params url.Values) (json.RawMessage, error) {
	token, err := t.auth.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+action, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", action, err)
	}
	req.URL.RawQuery = params.Encode()
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", action, err)
	}

	t.logger.Debug().
		Str("action", action).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("translator api request")

	return decodeResponse(action, body)
}

// decodeResponse strips the UTF-8 BOM the service prefixes to its JSON
// bodies and converts exception-tagged string payloads into typed errors.
func decodeResponse(action string, body []byte) (json.RawMessage, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))

	var payload string
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case strings.HasPrefix(payload, argumentOutOfRangePrefix):
			return nil, &ArgumentOutOfRangeError{Message: stripExceptionTag(payload, argumentOutOfRangePrefix)}
		case strings.HasPrefix(payload, translateAPIPrefix):
			return nil, &TranslateAPIError{Message: stripExceptionTag(payload, translateAPIPrefix)}
		}
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON in %s response", action)
	}
	return json.RawMessage(body), nil
}

// TranslateOptions carries the optional knobs shared by the translation
// operations. A nil value means defaults.
type TranslateOptions struct {
	From        string // source language; autodetected when empty
	ContentType string // ContentTypePlain (default) or ContentTypeHTML
	Category    string // translation category, defaults to "general"
}

func (o *TranslateOptions) withDefaults() TranslateOptions {
	var out TranslateOptions
	if o != nil {
		out = *o
	}
	if out.ContentType == "" {
		out.ContentType = ContentTypePlain
	}
	if out.Category == "" {
		out.Category = defaultCategory
	}
	return out
}

// translate validates the shared translation arguments, merges them with
// the operation's text parameters and issues the request. Validation
// failures surface before any network call.
func (t *Translator) translate(ctx context.Context, action string, textParams url.Values, langTo string, opts *TranslateOptions) (json.RawMessage, error) {
	if langTo == "" {
		return nil, errors.New("target language is required")
	}
	o := opts.withDefaults()
	if o.ContentType != ContentTypePlain && o.ContentType != ContentTypeHTML {
		return nil, fmt.Errorf("invalid content type %q", o.ContentType)
	}

	params := url.Values{}
	params.Set("to", langTo)
	params.Set("contentType", o.ContentType)
	params.Set("category", o.Category)
	if o.From != "" {
		params.Set("from", o.From)
	}
	for name, values := range textParams {
		for _, v := range values {
			params.Add(name, v)
		}
	}

	return t.makeRequest(ctx, action, params)
}

// Translate translates text into the target language and returns the
// translated string.
func (t *Translator) Translate(ctx context.Context, text, langTo string, opts *TranslateOptions) (string, error) {
	raw, err := t.translate(ctx, "Translate", url.Values{"text": {text}}, langTo, opts)
	if err != nil {
		return "", err
	}

	var translated string
	if err := json.Unmarshal(raw, &translated); err != nil {
		return "", fmt.Errorf("failed to decode Translate response: %w", err)
	}
	return translated, nil
}

// ArrayTranslation is one element of a TranslateArray response.
type ArrayTranslation struct {
	From                          string `json:"From"`
	TranslatedText                string `json:"TranslatedText"`
	OriginalTextSentenceLengths   []int  `json:"OriginalTextSentenceLengths"`
	TranslatedTextSentenceLengths []int  `json:"TranslatedTextSentenceLengths"`
}

// TranslateArray translates several texts in one request.
func (t *Translator) TranslateArray(ctx context.Context, texts []string, langTo string, opts *TranslateOptions) ([]ArrayTranslation, error) {
	return t.translateArray(ctx, "TranslateArray", texts, langTo, opts)
}

// TranslateArray2 is the variant of TranslateArray whose response carries
// sentence alignment information.
func (t *Translator) TranslateArray2(ctx context.Context, texts []string, langTo string, opts *TranslateOptions) ([]ArrayTranslation, error) {
	return t.translateArray(ctx, "TranslateArray2", texts, langTo, opts)
}

func (t *Translator) translateArray(ctx context.Context, action string, texts []string, langTo string, opts *TranslateOptions) ([]ArrayTranslation, error) {
	if texts == nil {
		texts = []string{}
	}
	encoded, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode texts: %w", err)
	}

	raw, err := t.translate(ctx, action, url.Values{"texts": {string(encoded)}}, langTo, opts)
	if err != nil {
		return nil, err
	}

	var translations []ArrayTranslation
	if err := json.Unmarshal(raw, &translations); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return translations, nil
}

// GetTranslationsOptions carries the optional knobs for GetTranslations.
// A nil value means defaults.
type GetTranslationsOptions struct {
	ContentType string // ContentTypePlain (default) or ContentTypeHTML
	Category    string // translation category, defaults to "general"
	URL         string // content location, forwarded when set
	User        string // user identity for collaborative translations
	State       string // opaque state echoed back by the service
}

// TranslationMatch is one ranked candidate in a GetTranslations response.
type TranslationMatch struct {
	TranslatedText      string `json:"TranslatedText"`
	Rating              int    `json:"Rating"`
	MatchDegree         int    `json:"MatchDegree"`
	Count               int    `json:"Count"`
	MatchedOriginalText string `json:"MatchedOriginalText"`
}

// GetTranslationsResponse holds the ranked candidates for one text.
type GetTranslationsResponse struct {
	From         string             `json:"From"`
	State        string             `json:"State"`
	Translations []TranslationMatch `json:"Translations"`
}

// GetTranslations returns up to maxN ranked translation candidates for
// text. maxN values below 1 default to 10.
func (t *Translator) GetTranslations(ctx context.Context, text, langFrom, langTo string, maxN int, opts *GetTranslationsOptions) (*GetTranslationsResponse, error) {
	var o GetTranslationsOptions
	if opts != nil {
		o = *opts
	}
	if o.ContentType == "" {
		o.ContentType = ContentTypePlain
	}
	if o.Category == "" {
		o.Category = defaultCategory
	}
	if maxN < 1 {
		maxN = defaultMaxTranslations
	}

	options := map[string]string{
		"Category":    o.Category,
		"ContentType": o.ContentType,
	}
	if o.URL != "" {
		options["Uri"] = o.URL
	}
	if o.User != "" {
		options["User"] = o.User
	}
	if o.State != "" {
		options["State"] = o.State
	}
	encoded, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	params := url.Values{
		"text":            {text},
		"to":              {langTo},
		"from":            {langFrom},
		"maxTranslations": {strconv.Itoa(maxN)},
		"options":         {string(encoded)},
	}
	raw, err := t.makeRequest(ctx, "GetTranslations", params)
	if err != nil {
		return nil, err
	}

	var resp GetTranslationsResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode GetTranslations response: %w", err)
	}
	return &resp, nil
}

// BreakSentences splits text into sentences. The service returns sentence
// lengths in characters; the returned slices partition the original text
// exactly.
func (t *Translator) BreakSentences(ctx context.Context, text, lang string) ([]string, error) {
	runes := []rune(text)
	if len(runes) > maxBreakSentencesChars {
		return nil, fmt.Errorf("text exceeds the maximum length of %d characters", maxBreakSentencesChars)
	}

	params := url.Values{
		"text":     {text},
		"language": {lang},
	}
	raw, err := t.makeRequest(ctx, "BreakSentences", params)
	if err != nil {
		return nil, err
	}

	var lengths []int
	if err := json.Unmarshal(raw, &lengths); err != nil {
		return nil, fmt.Errorf("failed to decode BreakSentences response: %w", err)
	}

	sentences := make([]string, 0, len(lengths))
	offset := 0
	for _, n := range lengths {
		if n < 0 || offset+n > len(runes) {
			return nil, fmt.Errorf("sentence length %d exceeds remaining text", n)
		}
		sentences = append(sentences, string(runes[offset:offset+n]))
		offset += n
	}
	return sentences, nil
}

// AddTranslationOptions carries the optional knobs for AddTranslation.
// A nil value means defaults.
type AddTranslationOptions struct {
	ContentType string // ContentTypePlain (default) or ContentTypeHTML
	Category    string // translation category, defaults to "general"
	URL         string // content location, forwarded when set
}

// AddTranslation submits a user-provided translation of original as
// feedback. rating must lie strictly between -10 and 10.
func (t *Translator) AddTranslation(ctx context.Context, original, translated, langFrom, langTo, user string, rating int, opts *AddTranslationOptions) error {
	if utf8.RuneCountInString(original) > maxOriginalTextChars {
		return fmt.Errorf("original text exceeds the maximum length of %d characters", maxOriginalTextChars)
	}
	if utf8.RuneCountInString(translated) > maxTranslatedTextChars {
		return fmt.Errorf("translated text exceeds the maximum length of %d characters", maxTranslatedTextChars)
	}

	var o AddTranslationOptions
	if opts != nil {
		o = *opts
	}
	if o.ContentType == "" {
		o.ContentType = ContentTypePlain
	}
	if o.Category == "" {
		o.Category = defaultCategory
	}
	if o.ContentType != ContentTypePlain && o.ContentType != ContentTypeHTML {
		return fmt.Errorf("invalid content type %q", o.ContentType)
	}
	if rating <= -10 || rating >= 10 {
		return fmt.Errorf("rating must be between -10 and 10 exclusive, got %d", rating)
	}

	params := url.Values{
		"originalText":   {original},
		"translatedText": {translated},
		"from":           {langFrom},
		"to":             {langTo},
		"user":           {user},
		"contentType":    {o.ContentType},
		"rating":         {strconv.Itoa(rating)},
		"category":       {o.Category},
	}
	if o.URL != "" {
		params.Set("uri", o.URL)
	}

	_, err := t.makeRequest(ctx, "AddTranslation", params)
	return err
}

// GetLangs lists the language codes the service can translate. With
// speakable set it lists the languages available for speech synthesis
// instead.
func (t *Translator) GetLangs(ctx context.Context, speakable bool) ([]string, error) {
	action := "GetLanguagesForTranslate"
	if speakable {
		action = "GetLanguagesForSpeak"
	}

	raw, err := t.makeRequest(ctx, action, nil)
	if err != nil {
		return nil, err
	}

	var langs []string
	if err := json.Unmarshal(raw, &langs); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return langs, nil
}

// GetLangNames returns the display names of the given language codes,
// localized for the locale language.
func (t *Translator) GetLangNames(ctx context.Context, codes []string, locale string) ([]string, error) {
	if codes == nil {
		codes = []string{}
	}
	encoded, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode language codes: %w", err)
	}

	params := url.Values{
		"locale":        {locale},
		"languageCodes": {string(encoded)},
	}
	raw, err := t.makeRequest(ctx, "GetLanguageNames", params)
	if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("failed to decode GetLanguageNames response: %w", err)
	}
	return names, nil
}

// DetectLang detects the language of text and returns its code.
func (t *Translator) DetectLang(ctx context.Context, text string) (string, error) {
	raw, err := t.makeRequest(ctx, "Detect", url.Values{"text": {text}})
	if err != nil {
		return "", err
	}

	var lang string
	if err := json.Unmarshal(raw, &lang); err != nil {
		return "", fmt.Errorf("failed to decode Detect response: %w", err)
	}
	return lang, nil
}

// DetectLangs detects the language of each text in one request.
func (t *Translator) DetectLangs(ctx context.Context, texts []string) ([]string, error) {
	if texts == nil {
		texts = []string{}
	}
	encoded, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode texts: %w", err)
	}

	raw, err := t.makeRequest(ctx, "DetectArray", url.Values{"texts": {string(encoded)}})
	if err != nil {
		return nil, err
	}

	var langs []string
	if err := json.Unmarshal(raw, &langs); err != nil {
		return nil, fmt.Errorf("failed to decode DetectArray response: %w", err)
	}
	return langs, nil
}
