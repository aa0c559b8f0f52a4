// Package handlers contains reusable HTTP building blocks for the API server.
//
// # Authentication
//
// JWTAuth verifies HS256 bearer tokens and resolves the caller variant
// (student, agent or admin) once per request:
//
//	auth := handlers.NewJWTAuth(secret, issuer, log)
//	api.Use(auth.Middleware(writeError))
//
//	caller, ok := handlers.CallerFromContext(r.Context())
//
// # Rate limiting
//
// RateLimiter keeps a token bucket per user (or per client IP before
// authentication). When a DistributedLimiter is configured, such as the
// Redis fixed-window limiter, it is consulted first and local buckets are
// used only while it is unavailable.
//
// # Health checks
//
// CompositeHealthChecker runs named checks in parallel. Critical checks
// decide readiness; optional checks only degrade the reported status:
//
//	checker := handlers.NewCompositeHealthChecker(version)
//	checker.AddCheck("postgres", handlers.NewPingCheck(db))
//	checker.AddOptionalCheck("redis", handlers.NewPingCheck(redisClient))
package handlers
