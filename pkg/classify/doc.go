// Package classify assigns an architectural kind to a free-text node label.
//
// The [Classifier] walks a fixed cascade and stops at the first accepted hit:
//
//  1. cloud resource pre-check for "provider-service" labels such as "aws-lambda"
//  2. for the full slug and then each of its words: canonical token (also with
//     a cloud provider prefix removed), display name, alias
//  3. word vote over the whole label
//  4. fuzzy token-sort ratio against every indexed key
//  5. regex rules, from a YAML rule file first and then the built-in defaults
//  6. the default kind
//
// A label mentioning "database" or "db" only accepts Database hits, and one
// mentioning "microservice" only accepts Microservice hits; when nothing
// qualifies the required kind becomes the default.
//
// Results are memoized in an LRU keyed by the taxonomy checksum, so a new
// taxonomy never serves stale classifications.
package classify
