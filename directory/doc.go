// Package directory provides the LDAP plumbing for the claims resolution
// engine: pooled connections with retry and health checking, DNS SRV server
// discovery, simple-bind and Kerberos authentication, categorized errors, and
// decoding of binary attribute encodings (objectSid, objectGUID).
//
// The package exposes search and bind operations but no directory writes.
package directory
