package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"
)

// jwksKeyfunc fetches the key set at url and refreshes it every interval
// until ctx is cancelled.
func jwksKeyfunc(ctx context.Context, url string, interval time.Duration) (jwt.Keyfunc, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	set, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	var current atomic.Value
	current.Store(set)
	if interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					next, err := jwk.Fetch(ctx, url, jwk.WithHTTPClient(httpClient))
					if err != nil {
						log.Warn().Err(err).Str("jwks_url", url).Msg("refresh jwks")
						continue
					}
					current.Store(next)
				}
			}
		}()
	}
	return func(t *jwt.Token) (interface{}, error) {
		set := current.Load().(jwk.Set)
		kid, _ := t.Header["kid"].(string)
		key, ok := set.LookupKeyID(kid)
		if !ok && kid == "" {
			// tokens without a kid are checked against the first key
			key, ok = set.Key(0)
		}
		if !ok {
			return nil, fmt.Errorf("no jwk for kid: %s", kid)
		}
		var pub any
		if err := key.Raw(&pub); err != nil {
			return nil, err
		}
		return pub, nil
	}, nil
}
