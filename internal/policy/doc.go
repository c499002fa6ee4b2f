// Package policy decides what the proxy may fetch and who may ask it to.
//
// A Policy holds the categorised allow-list of target hosts. Exact entries
// match one hostname; "*.example.com" entries match example.com and its
// subdomains. Loopback, private, link-local, multicast and reserved
// addresses are always refused, whatever the allow-list says. Matching is
// purely lexical on the hostname in the URL.
//
// A Gate implements the anti-hotlink check on the Referer and Origin
// headers of the inbound request.
package policy
