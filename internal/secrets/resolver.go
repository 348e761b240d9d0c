package secrets

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"go.uber.org/zap"

	pkgsecrets "github.com/happydiving/pricing-engine/pkg/secrets"
	"github.com/happydiving/pricing-engine/pkg/utils"
)

// DSNResolver builds the Postgres DSN from a Secrets Manager secret,
// caching the result locally. The secret either carries a ready "dsn" (or
// "url") or the RDS fields username, password, host, port, dbname.
type DSNResolver struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[string]
}

func NewDSNResolver(logger *zap.Logger, provider pkgsecrets.Provider, cache *pkgsecrets.Cache[string]) *DSNResolver {
	return &DSNResolver{logger: logger, provider: provider, cache: cache}
}

// Resolve returns the DSN stored under secretName.
func (r *DSNResolver) Resolve(ctx context.Context, secretName string) (string, error) {
	if dsn, ok := r.cache.Get(secretName); ok {
		return dsn, nil
	}

	fields, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("aws.secret_fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		return "", fmt.Errorf("resolve database secret %q: %w", secretName, err)
	}

	dsn, err := BuildDSN(fields)
	if err != nil {
		return "", fmt.Errorf("parse secret %q: %w", secretName, err)
	}
	r.cache.Put(secretName, dsn)

	r.logger.Info("aws.database_dsn_resolved",
		zap.String("secret", secretName),
		zap.String("dsn", utils.MaskDSN(dsn)))
	return dsn, nil
}

// BuildDSN turns secret fields into a postgres:// URL.
func BuildDSN(fields map[string]string) (string, error) {
	for _, k := range []string{"dsn", "url", "database_url"} {
		if v := fields[k]; v != "" {
			return v, nil
		}
	}

	for _, k := range []string{"username", "password", "host"} {
		if fields[k] == "" {
			return "", fmt.Errorf("secret missing %q", k)
		}
	}
	port := fields["port"]
	if port == "" {
		port = "5432"
	}
	dbname := fields["dbname"]
	if dbname == "" {
		dbname = fields["username"]
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(fields["username"], fields["password"]),
		Host:   net.JoinHostPort(fields["host"], port),
		Path:   "/" + dbname,
	}
	if mode := fields["sslmode"]; mode != "" {
		u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
	}
	return u.String(), nil
}
