// Package types answers the two type questions the access-mode core asks:
// may a value of this type be duplicated implicitly (Oracle), and what is
// the static type of this expression (Env).
//
// Both answers may be "unknown". Callers treat unknown as a reason to do
// nothing rather than guess.
package types
