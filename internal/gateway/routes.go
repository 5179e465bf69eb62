package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/servicegate/internal/config"
)

// Route はサービス識別子と転送先ベースURLの対応。
type Route struct {
	// Name はx-service-targetヘッダーで指定するサービス識別子。
	Name string
	// Target は転送先のベースURL。
	Target *url.URL
}

// RouteTable はサービス識別子から転送先を引くルーティングテーブル。
// 許可リストとアドレス表を1つにまとめたもので、構築後は変更しない。
type RouteTable struct {
	names  []string
	routes map[string]*Route
}

// NewRouteTable は設定のサービス一覧からルーティングテーブルを構築する。
func NewRouteTable(services []config.Service) (*RouteTable, error) {
	t := &RouteTable{
		names:  make([]string, 0, len(services)),
		routes: make(map[string]*Route, len(services)),
	}
	for _, s := range services {
		if _, dup := t.routes[s.Name]; dup {
			return nil, fmt.Errorf("サービス名が重複しています: %s", s.Name)
		}
		target, err := url.Parse(s.URL)
		if err != nil {
			return nil, fmt.Errorf("サービスのURLが不正です: %s: %w", s.Name, err)
		}
		if target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("サービスのURLは絶対URLである必要があります: %s: %q", s.Name, s.URL)
		}
		t.names = append(t.names, s.Name)
		t.routes[s.Name] = &Route{Name: s.Name, Target: target}
	}
	return t, nil
}

// Names は登録されているサービス識別子を定義順で返す。
func (t *RouteTable) Names() []string {
	return append([]string(nil), t.names...)
}

// Resolve はサービス識別子に対応するRouteを返す。
func (t *RouteTable) Resolve(name string) (*Route, error) {
	if name == "" {
		return nil, &RoutingError{Kind: ErrMissingTarget}
	}
	route, ok := t.routes[name]
	if !ok {
		return nil, &RoutingError{Kind: ErrUnknownService, Service: name}
	}
	if route.Target == nil {
		return nil, &RoutingError{Kind: ErrUnmappedService, Service: name}
	}
	return route, nil
}

// isPublicRoute はreqPathが公開ルートのいずれかに一致するかを返す。
// 完全一致か、公開ルートの直後が/で区切られる前方一致のみを一致とみなす。
func isPublicRoute(reqPath string, publicRoutes []string) bool {
	for _, r := range publicRoutes {
		r = strings.TrimSuffix(r, "/")
		if r == "" {
			continue
		}
		if reqPath == r || strings.HasPrefix(reqPath, r+"/") {
			return true
		}
	}
	return false
}

// cleanPath はパスから.や..のセグメントと連続した/を取り除く。末尾の/は保持する。
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if p[len(p)-1] == '/' && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

// normalizePath はリクエストのパスを正規化する。
// 公開ルートの判定と転送は同じ正規化済みのパスに対して行う。
func normalizePath(r *http.Request) {
	cleaned := cleanPath(r.URL.Path)
	if cleaned == r.URL.Path {
		return
	}
	r.URL.Path = cleaned
	r.URL.RawPath = ""
}
