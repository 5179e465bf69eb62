package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// defaultFetchTimeout は鍵セット取得1回あたりのタイムアウト。
const defaultFetchTimeout = 10 * time.Second

// ErrFetchThrottled は鍵セット取得の回数上限に達した場合のエラー。
var ErrFetchThrottled = errors.New("key set fetch rate limit exceeded")

// DocumentFetcher は鍵セットのドキュメントを取得する。
type DocumentFetcher interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// cachedKey はキャッシュされた公開鍵と有効期限。
type cachedKey struct {
	key       *rsa.PublicKey
	expiresAt time.Time
}

// KeyCache はkidごとにRSA公開鍵をキャッシュする。
// 未知のkidは初回利用時に鍵セットを取得して登録する。同じkidへの同時取得は1回にまとめる。
type KeyCache struct {
	fetcher DocumentFetcher
	path    string
	maxAge  time.Duration
	limiter *rate.Limiter
	group   singleflight.Group
	logger  *zap.Logger

	mu   sync.RWMutex
	keys map[string]cachedKey

	// fetchTimeout は鍵セット取得1回あたりのタイムアウト。
	fetchTimeout time.Duration
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewKeyCache は新しいKeyCacheを生成する。
// pathは鍵セットのパス、requestsPerMinuteは鍵セット取得の1分あたりの上限回数。
func NewKeyCache(fetcher DocumentFetcher, path string, maxAge time.Duration, requestsPerMinute int, logger *zap.Logger) *KeyCache {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyCache{
		fetcher:      fetcher,
		path:         path,
		maxAge:       maxAge,
		limiter:      rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), requestsPerMinute),
		logger:       logger,
		keys:         make(map[string]cachedKey),
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
}

// PublicKey はkidに対応するRSA公開鍵を返す。
func (c *KeyCache) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	ch := c.group.DoChan(kid, func() (any, error) {
		if key, ok := c.lookup(kid); ok {
			return key, nil
		}
		if !c.limiter.Allow() {
			return nil, ErrFetchThrottled
		}

		// 取得結果は待機中の全リクエストで共有するため、最初の呼び出し元のキャンセルには従わない
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		keys, err := c.fetch(fetchCtx, kid)
		if len(keys) > 0 {
			c.store(keys)
			c.logger.Debug("署名鍵をキャッシュに登録", zap.String("kid", kid), zap.Int("keys", len(keys)))
		}
		if err != nil {
			c.logger.Warn("署名鍵の取得に失敗", zap.String("kid", kid), zap.Error(err))
			return nil, err
		}
		return keys[kid], nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		key, _ := res.Val.(*rsa.PublicKey)
		return key, nil
	}
}

// lookup は有効期限内のキャッシュ済み公開鍵を返す。
func (c *KeyCache) lookup(kid string) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.keys[kid]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	return entry.key, true
}

// store は公開鍵をまとめてキャッシュに登録する。期限切れのエントリはここで掃除する。
func (c *KeyCache) store(keys map[string]*rsa.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.keys {
		if !now.Before(entry.expiresAt) {
			delete(c.keys, k)
		}
	}
	expiresAt := now.Add(c.maxAge)
	for kid, key := range keys {
		c.keys[kid] = cachedKey{key: key, expiresAt: expiresAt}
	}
}

// fetch は鍵セットを取得し、kidを持つRSA公開鍵をすべて返す。
// 指定したkidの鍵が無い、またはRSAでない場合は、他の鍵と一緒にエラーを返す。
func (c *KeyCache) fetch(ctx context.Context, kid string) (map[string]*rsa.PublicKey, error) {
	body, err := c.fetcher.Get(ctx, c.path)
	if err != nil {
		return nil, fmt.Errorf("鍵セットの取得に失敗: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("鍵セットの解析に失敗: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, set.Len())
	var kidErr error
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok || key.KeyID() == "" {
			continue
		}
		pub, err := rsaPublicKey(key)
		if err != nil {
			if key.KeyID() == kid {
				kidErr = err
			}
			continue
		}
		keys[key.KeyID()] = pub
	}

	if _, ok := keys[kid]; ok {
		return keys, nil
	}
	if kidErr == nil {
		kidErr = fmt.Errorf("kid %q に対応する鍵がありません", kid)
	}
	return keys, kidErr
}

// rsaPublicKey はJWKからRSA公開鍵を取り出す。
func rsaPublicKey(key jwk.Key) (*rsa.PublicKey, error) {
	if key.KeyType() != jwa.RSA {
		return nil, fmt.Errorf("kid %q の鍵はRSAではありません: %s", key.KeyID(), key.KeyType())
	}

	var raw any
	if err := key.Raw(&raw); err != nil {
		return nil, fmt.Errorf("公開鍵の取り出しに失敗: %w", err)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("kid %q の鍵は公開鍵ではありません", key.KeyID())
	}
	return pub, nil
}
