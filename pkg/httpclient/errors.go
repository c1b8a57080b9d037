package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnreachable はバックエンドに到達できなかったことを表す。
// ネットワーク障害やDNS解決失敗が該当する。呼び出し元は502相当に変換する。
var ErrUnreachable = errors.New("バックエンドに到達できません")

// ErrTimeout はバックエンド呼び出しがタイムアウトしたことを表す。
// 呼び出し元は504相当に変換する。
var ErrTimeout = errors.New("バックエンド呼び出しがタイムアウトしました")

// ErrUpstream はバックエンドが5xxを返したことを表す。
// 詳細はログにのみ残し、外部の呼び出し元には伝えない。
var ErrUpstream = errors.New("バックエンドで内部エラーが発生しました")

// ClientError はバックエンドが返した4xxエラー。
// ステータスコードとボディを保持したまま元の呼び出し元へ透過するために使用する。
// ゲートウェイはビジネスルールのエラーに対して権威を持たないため、内容を解釈し直さない。
type ClientError struct {
	// StatusCode はバックエンドが返したHTTPステータスコード。
	StatusCode int
	// ContentType はバックエンドが返したContent-Type。空の場合はapplication/jsonとみなす。
	ContentType string
	// RawBody はバックエンドが返したボディの生テキスト。
	RawBody string
	// JSONBody はボディがJSONとして解析できた場合の構造化データ。解析できなければnil。
	JSONBody map[string]any
}

// Error はerrorインターフェースを実装する。
func (e *ClientError) Error() string {
	return fmt.Sprintf("バックエンドがクライアントエラーを返却: status=%d, body=%s", e.StatusCode, e.RawBody)
}

// newClientError は4xxレスポンスからClientErrorを生成する。
func newClientError(statusCode int, contentType string, body []byte) *ClientError {
	ce := &ClientError{
		StatusCode:  statusCode,
		ContentType: contentType,
		RawBody:     string(body),
	}
	var jsonBody map[string]any
	if err := json.Unmarshal(body, &jsonBody); err == nil {
		ce.JSONBody = jsonBody
	}
	return ce
}

// ResponseContentType はエラーボディを転送する際に使用するContent-Typeを返す。
func (e *ClientError) ResponseContentType() string {
	if e.ContentType == "" {
		return "application/json"
	}
	return e.ContentType
}

// AsClientError はエラーがClientErrorの場合にそれを取り出す。
func AsClientError(err error) (*ClientError, bool) {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsNotFound はエラーがバックエンドの404応答かどうかを判定する。
// Sagaステップの「取得してから作成する」判断に使用する。
func IsNotFound(err error) bool {
	ce, ok := AsClientError(err)
	return ok && ce.StatusCode == http.StatusNotFound
}

// IsConflict はエラーがバックエンドの409応答（重複作成等）かどうかを判定する。
func IsConflict(err error) bool {
	ce, ok := AsClientError(err)
	return ok && ce.StatusCode == http.StatusConflict
}
