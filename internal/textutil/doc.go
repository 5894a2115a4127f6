// Package textutil derives document titles and filesystem-safe names for
// decoded output.
package textutil
