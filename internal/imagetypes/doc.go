// Package imagetypes defines the set of image file extensions the
// scanner recognizes as screenshots, along with their MIME types.
package imagetypes
