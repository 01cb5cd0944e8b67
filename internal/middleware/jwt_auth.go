package middleware

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ctxKey int

const claimsKey ctxKey = 1

// ClaimsFromContext returns the verified token claims set by JWTAuth.
func ClaimsFromContext(ctx context.Context) (jwt.MapClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(jwt.MapClaims)
	return claims, ok
}

// jwk is one key of a JWKS document.
type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWTAuthenticator verifies RS256 bearer tokens against the issuer's JWKS.
// Keys are fetched lazily and cached; an unknown kid forces a refresh so
// key rotation at the issuer does not require a restart.
type JWTAuthenticator struct {
	log      *zap.SugaredLogger
	issuer   string
	audience string
	client   *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	ttl       time.Duration
}

func NewJWTAuthenticator(log *zap.SugaredLogger, issuer, audience string) *JWTAuthenticator {
	return &JWTAuthenticator{
		log:      log,
		issuer:   strings.TrimSuffix(issuer, "/"),
		audience: audience,
		client:   &http.Client{Timeout: 10 * time.Second},
		keys:     map[string]*rsa.PublicKey{},
		ttl:      time.Hour,
	}
}

// Middleware returns a HTTP 401 response unless the request carries a valid
// bearer token issued by the configured issuer.
func (a *JWTAuthenticator) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := a.verify(r.Context(), raw)
			if err != nil {
				a.log.With("err", err).Info("rejected bearer token")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

func (a *JWTAuthenticator) verify(ctx context.Context, raw string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	}
	if a.audience != "" {
		opts = append(opts, jwt.WithAudience(a.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return a.keyFor(ctx, kid)
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func (a *JWTAuthenticator) keyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stale := time.Since(a.fetchedAt) > a.ttl
	if key, ok := a.keys[kid]; ok && !stale {
		return key, nil
	}

	if err := a.refreshLocked(ctx); err != nil {
		return nil, err
	}
	key, ok := a.keys[kid]
	if !ok {
		return nil, errors.Errorf("no JWKS key with kid %s", kid)
	}
	return key, nil
}

func (a *JWTAuthenticator) refreshLocked(ctx context.Context) error {
	url := a.issuer + "/.well-known/jwks.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "building JWKS request")
	}
	res, err := a.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "fetching JWKS")
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return errors.Errorf("JWKS endpoint returned status %d", res.StatusCode)
	}

	var doc jwks
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return errors.Wrap(err, "decoding JWKS")
	}

	keys := map[string]*rsa.PublicKey{}
	for _, k := range doc.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := parseRSAKey(k)
		if err != nil {
			a.log.With("kid", k.Kid, "err", err).Warn("skipping unparseable JWKS key")
			continue
		}
		keys[k.Kid] = pub
	}
	a.keys = keys
	a.fetchedAt = time.Now()
	return nil
}

func parseRSAKey(k jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, errors.Wrap(err, "decoding modulus")
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, errors.Wrap(err, "decoding exponent")
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}
