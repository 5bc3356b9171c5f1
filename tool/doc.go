// Package tool defines the provider adapter contract, tool descriptors and
// the typed registry the router selects from.
//
// Adapters are registered once at startup in declaration order. Declaration
// order is significant: it breaks routing ties.
package tool
