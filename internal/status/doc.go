// Package status rolls per-resource state up into Application status.
package status
