package gateway

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/internal/onboarding"
	"github.com/nao1215/hirehub/pkg/event"
	"github.com/nao1215/hirehub/pkg/httpclient"
	"github.com/nao1215/hirehub/pkg/middleware"
	"github.com/nao1215/hirehub/pkg/registry"
)

// contentTypeJSON はJSONレスポンスのContent-Type。
const contentTypeJSON = "application/json"

// handleHealth はゲートウェイ自身とRedisの死活を返すハンドラーを返す。
// Redisに到達できない場合は503を返し、ロードバランサーの切り離し判断に使う。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// handleWebhook は外部サービスからのWebhookをバックエンドへ素通しする
// ハンドラーを返す。署名検証はバックエンドの責務であり、ゲートウェイは
// ボディと署名ヘッダーを一切改変しない。
func (s *Server) handleWebhook(backend registry.Backend, servicePath string) gin.HandlerFunc {
	client := s.mustClient(backend)

	return func(c *gin.Context) {
		correlationID := middleware.GetCorrelationID(c)

		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディの読み取りに失敗しました"})
			return
		}

		// 署名ヘッダーを含む受信ヘッダーをそのまま引き継ぐ
		headers := make(map[string]string)
		for name, values := range c.Request.Header {
			if len(values) == 0 {
				continue
			}
			switch strings.ToLower(name) {
			case "host", "content-length", "connection", "accept-encoding":
				continue
			}
			headers[name] = values[0]
		}

		resp, err := client.PostRaw(c.Request.Context(), servicePath, raw,
			c.ContentType(),
			&httpclient.Options{CorrelationID: correlationID, Headers: headers})
		if err != nil {
			s.writeBackendError(c, "webhook", err)
			return
		}
		if len(resp.Raw) == 0 {
			c.Status(resp.StatusCode)
			return
		}
		c.Data(resp.StatusCode, contentTypeJSON, resp.Raw)
	}
}

// contactRequest はステータスページの問い合わせフォームのリクエストボディ。
type contactRequest struct {
	// Name は問い合わせ者の名前。
	Name string `json:"name"`
	// Email は問い合わせ者の連絡先メールアドレス。
	Email string `json:"email"`
	// Message は問い合わせ内容。
	Message string `json:"message"`
}

// minContactMessageLength は問い合わせ内容の最小文字数。
// これより短い入力は意味のある問い合わせとして扱わない。
const minContactMessageLength = 10

// validEmailShape はメールアドレスとして最低限の形をしているかを判定する。
// 厳密な検証は通知を担うイベント購読者の責務であり、ここでは明白な
// 入力ミスだけを弾く。
func validEmailShape(email string) bool {
	local, domain, found := strings.Cut(email, "@")
	return found && local != "" && strings.Contains(domain, ".")
}

// handleStatusContact は問い合わせをドメインイベントとして発行するハンドラーを返す。
// ゲートウェイは受理だけを保証し、後続の処理はイベント購読者に委ねる。
func (s *Server) handleStatusContact() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contactRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}
		if !validEmailShape(strings.TrimSpace(req.Email)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "emailの形式が不正です"})
			return
		}
		if utf8.RuneCountInString(strings.TrimSpace(req.Message)) < minContactMessageLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "messageは10文字以上で入力してください"})
			return
		}

		if !s.publisher.IsConnected() {
			if err := s.publisher.Connect(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "問い合わせを受け付けられません。時間をおいて再試行してください"})
				return
			}
		}

		correlationID := middleware.GetCorrelationID(c)
		err := s.publisher.Publish(c.Request.Context(), event.TypeContactSubmitted, map[string]any{
			"name":           req.Name,
			"email":          req.Email,
			"message":        req.Message,
			"correlation_id": correlationID,
		})
		if err != nil {
			log.Printf("[Gateway] 問い合わせイベントの発行に失敗しました: correlation_id=%s, error=%v", correlationID, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "問い合わせを受け付けられません。時間をおいて再試行してください"})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	}
}

// requireIdentity はコンテキストからアイデンティティを取り出す。
// 認証ミドルウェアが/api/v2配下で保証しているため、欠落は設定ミスを意味する。
func requireIdentity(c *gin.Context) (*identity.Identity, bool) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
		return nil, false
	}
	return ident, true
}

// handleOnboardingInit はユーザーレコードを実体化するハンドラーを返す。
func (s *Server) handleOnboardingInit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := requireIdentity(c)
		if !ok {
			return
		}

		user, err := s.orchestrator.Init(c.Request.Context(), ident, middleware.GetCorrelationID(c))
		if err != nil {
			s.writeBackendError(c, "onboarding-init", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// handleOnboardingCandidate は候補者オンボーディングを実行するハンドラーを返す。
func (s *Server) handleOnboardingCandidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := requireIdentity(c)
		if !ok {
			return
		}

		var req onboarding.CandidateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		result, err := s.orchestrator.Candidate(c.Request.Context(), ident, middleware.GetCorrelationID(c), &req)
		if err != nil {
			s.writeOnboardingError(c, "onboarding-candidate", err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// handleOnboardingRecruiter はリクルーターオンボーディングを実行するハンドラーを返す。
func (s *Server) handleOnboardingRecruiter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := requireIdentity(c)
		if !ok {
			return
		}

		var req onboarding.RecruiterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		result, err := s.orchestrator.Recruiter(c.Request.Context(), ident, middleware.GetCorrelationID(c), &req)
		if err != nil {
			s.writeOnboardingError(c, "onboarding-recruiter", err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// handleOnboardingBusiness は事業者オンボーディングを実行するハンドラーを返す。
func (s *Server) handleOnboardingBusiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := requireIdentity(c)
		if !ok {
			return
		}

		var req onboarding.BusinessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}
		if strings.TrimSpace(req.OrganizationName) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "organization_nameは必須です"})
			return
		}

		result, err := s.orchestrator.Business(c.Request.Context(), ident, middleware.GetCorrelationID(c), &req)
		if err != nil {
			s.writeOnboardingError(c, "onboarding-business", err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// handleOnboardingStatus はオンボーディングの進行状況を返すハンドラーを返す。
func (s *Server) handleOnboardingStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := requireIdentity(c)
		if !ok {
			return
		}

		status, err := s.orchestrator.GetStatus(c.Request.Context(), ident, middleware.GetCorrelationID(c))
		if err != nil {
			s.writeBackendError(c, "onboarding-status", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// writeOnboardingError はオンボーディング固有のエラーをHTTPレスポンスへ変換する。
func (s *Server) writeOnboardingError(c *gin.Context, operation string, err error) {
	if errors.Is(err, onboarding.ErrAlreadyOnboarded) {
		c.JSON(http.StatusConflict, gin.H{"error": onboarding.ErrAlreadyOnboarded.Error()})
		return
	}
	s.writeBackendError(c, operation, err)
}

// writeBackendError はバックエンド呼び出しのエラーをHTTPレスポンスへ変換する。
// 4xxはステータスとボディをそのまま透過し、タイムアウトは504、
// それ以外の障害は詳細を隠した502として返す。
func (s *Server) writeBackendError(c *gin.Context, operation string, err error) {
	correlationID := middleware.GetCorrelationID(c)

	if clientErr, ok := httpclient.AsClientError(err); ok {
		log.Printf("[Gateway] バックエンドがエラーを返しました: operation=%s, status=%d, correlation_id=%s",
			operation, clientErr.StatusCode, correlationID)
		c.Data(clientErr.StatusCode, clientErr.ResponseContentType(), []byte(clientErr.RawBody))
		return
	}
	if errors.Is(err, httpclient.ErrTimeout) {
		log.Printf("[Gateway] バックエンドがタイムアウトしました: operation=%s, correlation_id=%s", operation, correlationID)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "バックエンドサービスが応答しませんでした"})
		return
	}
	log.Printf("[Gateway] バックエンド呼び出しに失敗しました: operation=%s, correlation_id=%s, error=%v",
		operation, correlationID, err)
	c.JSON(http.StatusBadGateway, gin.H{"error": "バックエンドサービスでエラーが発生しました"})
}
