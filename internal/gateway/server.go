package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nao1215/hirehub/internal/config"
	"github.com/nao1215/hirehub/internal/identity"
	"github.com/nao1215/hirehub/internal/onboarding"
	"github.com/nao1215/hirehub/internal/resource"
	"github.com/nao1215/hirehub/pkg/event"
	"github.com/nao1215/hirehub/pkg/httpclient"
	"github.com/nao1215/hirehub/pkg/middleware"
	"github.com/nao1215/hirehub/pkg/registry"
)

// apiBase は外部公開APIのベースパス。
const apiBase = "/api/v2"

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// redisClient はレートリミットとイベント発行で共有するRedisクライアント。
	redisClient *redis.Client
	// registry はバックエンドサービスのクライアントレジストリ。
	registry *registry.Registry
	// verifier はBearerトークンの検証器。
	verifier *identity.Verifier
	// publisher はドメインイベントのパブリッシャ。
	publisher *event.Publisher
	// orchestrator はオンボーディングSagaのオーケストレータ。
	orchestrator *onboarding.Orchestrator
}

// NewServer は新しいGatewayサーバーを生成する。
// バックエンドの登録とルーティングの構築までを行い、失敗した場合は
// 起動させずにエラーを返す。
func NewServer(cfg *config.Config) (*Server, error) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)

	reg := registry.New()
	for backend, baseURL := range cfg.BackendURLs {
		if err := reg.Register(backend, httpclient.New(baseURL)); err != nil {
			return nil, fmt.Errorf("バックエンド登録に失敗: %w", err)
		}
	}

	userAPI := httpclient.New(cfg.UserAPIURL)
	issuers := make([]*identity.Issuer, 0, len(cfg.Issuers))
	for _, iss := range cfg.Issuers {
		issuers = append(issuers, identity.NewIssuer(iss.Name, iss.Secret, userAPI))
	}
	verifier := identity.NewVerifier(identity.NewCache(identity.DefaultCacheTTL), issuers...)

	publisher := event.NewPublisherWithClient(redisClient)

	orch, err := onboarding.NewOrchestrator(reg, publisher)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:       gin.New(),
		port:         cfg.Port,
		redisClient:  redisClient,
		registry:     reg,
		verifier:     verifier,
		publisher:    publisher,
		orchestrator: orch,
	}
	if err := s.setupRoutes(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Run はイベントパブリッシャを接続し、HTTPサーバーを起動する。
// Redisに接続できなくてもゲートウェイは起動する。接続を要する
// エンドポイントが利用時に503を返す。
func (s *Server) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.publisher.Connect(ctx); err != nil {
		log.Printf("[Gateway] イベントパブリッシャの接続に失敗しました（起動は継続します）: %v", err)
	}

	log.Printf("[Gateway] サーバーを起動します: :%s", s.port)
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はミドルウェアチェーンとAPIルーティングを構築する。
func (s *Server) setupRoutes(cfg *config.Config) error {
	defs := resourceDefinitions()

	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.CORS(cfg.AllowedOrigins))
	s.router.Use(middleware.Correlation([]string{"/health"}))
	s.router.Use(middleware.Auth(middleware.AuthConfig{
		Verifier:           s.verifier,
		InternalServiceKey: cfg.InternalServiceKey,
		SkipPrefixes:       []string{"/health", "/webhooks/"},
		// 匿名に開放されたリソースと問い合わせフォームでは、不正なトークンが
		// 付いていても匿名として通す。正しいトークンならアイデンティティを添付する。
		OptionalAuthPrefixes: append(resource.PublicPrefixes(apiBase, defs), apiBase+"/status-contact"),
	}))
	s.router.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Client:         s.redisClient,
		AnonymousLimit: cfg.AnonymousRateLimit,
		ExemptPrefixes: []string{"/health", "/webhooks/", apiBase + "/messages"},
	}))

	s.router.GET("/health", s.handleHealth())

	// Webhookは送信元サービスの署名検証をバックエンドに委ねるため、
	// ボディとヘッダーを改変せずそのまま転送する
	webhooks := s.router.Group("/webhooks")
	{
		webhooks.POST("/billing", s.handleWebhook(registry.BackendBilling, "/v1/webhooks/billing"))
		webhooks.POST("/identity", s.handleWebhook(registry.BackendIdentity, "/v1/webhooks/identity"))
	}

	api := s.router.Group(apiBase)
	{
		ob := api.Group("/onboarding")
		{
			ob.POST("/init", s.handleOnboardingInit())
			ob.POST("/candidate", s.handleOnboardingCandidate())
			ob.POST("/recruiter", s.handleOnboardingRecruiter())
			ob.POST("/business", s.handleOnboardingBusiness())
			ob.GET("/status", s.handleOnboardingStatus())
		}

		api.POST("/status-contact", s.handleStatusContact())
	}

	resolver := &membershipResolver{identityClient: s.mustClient(registry.BackendIdentity)}
	if err := resource.Mount(api, s.registry, resolver, defs); err != nil {
		return fmt.Errorf("リソースルーティングの構築に失敗: %w", err)
	}
	return nil
}

// mustClient はレジストリからクライアントを取得する。
// NewServerで全バックエンドを登録済みであることが前提。
func (s *Server) mustClient(backend registry.Backend) *httpclient.Client {
	client, err := s.registry.Get(backend)
	if err != nil {
		panic(err)
	}
	return client
}

// membershipResolver はidentityサービスへの問い合わせでメンバーシップを解決する。
// キャッシュから再構築されたアイデンティティはメンバーシップを持たないため、
// 役割チェックが必要になった時点でここから補完する。
type membershipResolver struct {
	// identityClient はidentityサービスへのHTTPクライアント。
	identityClient *httpclient.Client
}

// Memberships はサブジェクトIDに紐づくメンバーシップの一覧を返す。
func (m *membershipResolver) Memberships(ctx context.Context, subjectID, correlationID string) ([]identity.Membership, error) {
	resp, err := m.identityClient.Get(ctx,
		"/v1/users/by-subject/"+subjectID+"/memberships",
		&httpclient.Options{CorrelationID: correlationID})
	if err != nil {
		if httpclient.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("メンバーシップの取得に失敗: %w", err)
	}

	var memberships []identity.Membership
	if err := resp.Decode(&memberships); err != nil {
		return nil, err
	}
	return memberships, nil
}
