// Package httpclient はバックエンドサービスへのHTTP通信クライアントを提供する。
//
// 相関ID（X-Correlation-ID）の伝播、JSON/バイナリボディの送信、
// バックエンドのエラーレスポンスを型付きエラーへ変換する処理を含む。
// 4xxエラーはステータスとボディを保持したまま呼び出し元へ透過し、
// 5xx・ネットワーク障害は詳細を隠蔽した汎用エラーとして扱う。
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HeaderCorrelationID はサービス間でリクエストを追跡するための相関IDヘッダー。
const HeaderCorrelationID = "X-Correlation-ID"

// defaultTimeout はバックエンド呼び出しの既定タイムアウト。
// 応答しないバックエンドがゲートウェイのリクエストを無期限に塞がないようにする。
const defaultTimeout = 15 * time.Second

// Client はバックエンドサービスごとのHTTPクライアント。
// ベースURLは生成時に固定され、以降変更されない。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
}

// Options はリクエストごとの付加情報。
type Options struct {
	// Query はURLクエリパラメータ。
	Query map[string]string
	// CorrelationID は伝播する相関ID。空の場合はヘッダーを付与しない。
	CorrelationID string
	// Headers は追加のリクエストヘッダー。
	Headers map[string]string
}

// Response はバックエンドからの2xxレスポンス。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Raw はレスポンスボディ（JSON）。非JSONレスポンスや204の場合はnil。
	Raw json.RawMessage
}

// Decode はレスポンスボディを指定された型にデシリアライズする。
// ボディが空の場合は何もしない。
func (r *Response) Decode(v any) error {
	if len(r.Raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return nil
}

// New は新しいバックエンドサービス用HTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://billing:8084"）を指定する。
func New(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Get は指定パスにGETリクエストを送信する。
func (c *Client) Get(ctx context.Context, path string, opts *Options) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", opts)
}

// Delete は指定パスにDELETEリクエストを送信する。
func (c *Client) Delete(ctx context.Context, path string, opts *Options) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, "", opts)
}

// Post は指定パスにJSONボディでPOSTリクエストを送信する。
// bodyがnilの場合はボディなしで送信する。
func (c *Client) Post(ctx context.Context, path string, body any, opts *Options) (*Response, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, raw, contentTypeFor(raw), opts)
}

// Patch は指定パスにJSONボディでPATCHリクエストを送信する。
func (c *Client) Patch(ctx context.Context, path string, body any, opts *Options) (*Response, error) {
	raw, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPatch, path, raw, contentTypeFor(raw), opts)
}

// PostRaw は指定パスに生のバイナリボディでPOSTリクエストを送信する。
// 署名検証が必要なWebhookペイロードや、クライアントのボディを
// 再エンコードせずにそのまま転送するプロキシ経路で使用する。
func (c *Client) PostRaw(ctx context.Context, path string, raw []byte, contentType string, opts *Options) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, raw, contentType, opts)
}

// PatchRaw は指定パスに生のバイナリボディでPATCHリクエストを送信する。
func (c *Client) PatchRaw(ctx context.Context, path string, raw []byte, contentType string, opts *Options) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, raw, contentType, opts)
}

// encodeBody はリクエストボディをJSONにシリアライズする。
func encodeBody(body any) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
	}
	return raw, nil
}

// contentTypeFor はボディの有無に応じたContent-Typeを返す。
// ボディが無い場合はContent-Typeを付与しない。
func contentTypeFor(raw []byte) string {
	if raw == nil {
		return ""
	}
	return "application/json"
}

// do はHTTPリクエストを実行する共通処理。
// レスポンスのステータスコードに応じて型付きエラーへ変換する。
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, opts *Options) (*Response, error) {
	reqURL := c.baseURL + path
	if opts != nil && len(opts.Query) > 0 {
		values := url.Values{}
		for k, v := range opts.Query {
			values.Set(k, v)
		}
		reqURL += "?" + values.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if opts != nil {
		if opts.CorrelationID != "" {
			req.Header.Set(HeaderCorrelationID, opts.CorrelationID)
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[HTTPClient] バックエンドへの接続に失敗: url=%s, error=%v", reqURL, err)
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return nil, fmt.Errorf("%w: %s %s", ErrUnreachable, method, path)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, method, path)
}

// handleResponse はレスポンスをステータスコードに応じて解釈する。
func (c *Client) handleResponse(resp *http.Response, method, path string) (*Response, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// 204や非JSONレスポンスはボディなしとして扱う
		if resp.StatusCode == http.StatusNoContent || !isJSONContentType(resp.Header.Get("Content-Type")) || !json.Valid(respBody) {
			return &Response{StatusCode: resp.StatusCode}, nil
		}
		return &Response{StatusCode: resp.StatusCode, Raw: respBody}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// 4xxはバックエンドのエラー内容を保持したまま呼び出し元へ返す
		return nil, newClientError(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	default:
		// 5xxは詳細をログにのみ残し、呼び出し元には汎用エラーを返す
		log.Printf("[HTTPClient] バックエンドが5xxを返却: %s %s, status=%d, body=%s", method, path, resp.StatusCode, string(respBody))
		return nil, fmt.Errorf("%w: %s %s, status=%d", ErrUpstream, method, path, resp.StatusCode)
	}
}

// isJSONContentType はContent-TypeがJSONかどうかを判定する。
func isJSONContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "application/json")
}

// isTimeout はエラーがタイムアウト起因かどうかを判定する。
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}
