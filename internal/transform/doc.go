// Package transform implements linear vector pre-transforms applied before indexing.
package transform
