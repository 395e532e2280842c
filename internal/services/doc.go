// Package services defines the shared failure taxonomy: sentinel markers
// that classify errors crossing component boundaries and helpers to wrap
// causes with component context.
package services
