// Package bcb is the HTTP client layer for the Banco Central do Brasil open
// data APIs: the SGS time-series service (bcdata.sgs) and the Olinda OData
// services (SPI/Pix statistics, IF.Data supervised-institution reports,
// market expectations and retail interest rates).
//
// All fetches go through a single Client that applies, in order, a token
// bucket rate limit, a response cache with per-endpoint TTLs, request
// deduplication for concurrent identical URLs, a circuit breaker and a
// bounded retry loop. Responses decode into the transform package's Table
// and Series types with upstream column names preserved, so the
// transformation layer can detect upstream contract changes as missing
// columns instead of silently serving empty data.
//
// Transport failures surface as errors wrapping ErrUnavailable; client-side
// rejections (4xx) wrap ErrRejected and are never retried.
package bcb
