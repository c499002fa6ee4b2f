// Package proxy mediates /api/proxy requests.
//
// A request passes the Referer/Origin gate, the access token check and the
// domain policy before the target is fetched. The response body is then
// classified, rewritten when it is HTML or CSS, and returned with the
// proxy's CORS, security and caching headers. Every failure is reported in
// one JSON envelope:
//
//	{"error": "...", "code": "DOMAIN_NOT_ALLOWED", "message": "...",
//	 "timestamp": "...", "requestId": "req_..."}
package proxy
