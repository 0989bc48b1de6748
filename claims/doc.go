// Package claims defines the claim-type configuration model: mappings
// from abstract claim types to directory attributes and classes, and a
// collection type that enforces cross-field uniqueness rules on every
// mutation.
package claims
