// Package token implements the access token ledger.
//
// Tokens are issued to callers that passed the front-end gate and are
// presented on every proxy request. Each token has an absolute expiry and
// a request cap; both are enforced atomically per token. The ledger lives
// in process memory and is swept periodically by a background goroutine.
//
//	ledger := token.NewLedger(token.Settings{TTL: 15 * time.Minute, MaxRequests: 500})
//	go ledger.Sweep(ctx, time.Minute, nil)
//
//	tok := ledger.Issue(clientIP)
//	if _, err := ledger.Validate(tok.ID); err != nil { ... }
package token
